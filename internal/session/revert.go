package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/opencode-ai/opencode/internal/snapshot"
	"github.com/opencode-ai/opencode/internal/tool"
	"github.com/opencode-ai/opencode/pkg/types"
)

// RevertInput names the (message, part) coordinate a caller wants to revert
// to; PartID is optional — when absent, the coordinate resolves to the last
// preceding user message.
type RevertInput struct {
	SessionID string
	MessageID string
	PartID    *string
}

// RevertInfo is the resolved revert coordinate plus the baseline snapshot
// and display diff computed for it.
type RevertInfo struct {
	MessageID string
	PartID    *string
	Snapshot  *string
	Diff      *string
}

// Revert scans session messages in emission order, tracking the most recent
// user message id. When it finds the target message (and optional part), the
// coordinate becomes either the last preceding user message (message-level
// target) or the exact (message, part) pair (part-level target). If no
// existing revert marker carries a baseline snapshot, a fresh Track is taken
// and diffed against the current worktree for display. The marker is
// persisted on the session; messages are not truncated here — Cleanup does
// that once the caller confirms.
func (p *Processor) Revert(ctx context.Context, input RevertInput) (*types.Session, error) {
	session, err := p.findSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	messages, err := p.loadMessages(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	var lastUserID string
	var revert *RevertInfo

	for _, msg := range messages {
		if msg.Role == "user" {
			lastUserID = msg.ID
		}
		if revert != nil {
			continue
		}

		if msg.ID == input.MessageID && input.PartID == nil {
			target := lastUserID
			if target == "" {
				target = msg.ID
			}
			revert = &RevertInfo{MessageID: target}
			continue
		}

		if input.PartID != nil {
			parts, err := p.loadParts(ctx, msg.ID)
			if err != nil {
				continue
			}
			for _, part := range parts {
				if part.PartID() == *input.PartID {
					revert = &RevertInfo{MessageID: msg.ID, PartID: input.PartID}
					break
				}
			}
		}
	}

	if revert == nil {
		return session, nil
	}

	store := snapshot.New(session.Directory)

	baseline := ""
	if session.Revert != nil && session.Revert.Snapshot != nil {
		baseline = *session.Revert.Snapshot
	}
	if baseline == "" {
		tracked, err := store.Track(ctx)
		if err == nil {
			baseline = tracked
		}
	}
	revert.Snapshot = &baseline

	if baseline != "" {
		diffs, err := store.Diff(ctx, baseline)
		if err == nil && len(diffs) > 0 {
			if encoded, err := json.Marshal(diffs); err == nil {
				s := string(encoded)
				revert.Diff = &s
			}
		}
	}

	session.Revert = &types.SessionRevert{
		MessageID: revert.MessageID,
		PartID:    revert.PartID,
		Snapshot:  revert.Snapshot,
		Diff:      revert.Diff,
	}
	if err := p.saveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Unrevert restores the worktree from the marker's baseline snapshot (if
// any) and clears the marker.
func (p *Processor) Unrevert(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := p.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Revert == nil {
		return session, nil
	}

	if session.Revert.Snapshot != nil {
		store := snapshot.New(session.Directory)
		if err := store.Restore(ctx, *session.Revert.Snapshot); err != nil {
			return nil, fmt.Errorf("unrevert: restore snapshot: %w", err)
		}
	}

	session.Revert = nil
	if err := p.saveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Cleanup is the committing step after a confirmed revert: it drops every
// message whose id sorts strictly after marker.MessageID, and on the marker
// message itself drops parts at and after marker.PartID, then clears the
// marker. Message ids are ulids and therefore lexicographically ordered by
// creation time, so string comparison gives emission order.
func (p *Processor) Cleanup(ctx context.Context, sessionID string, marker RevertInfo) error {
	session, err := p.findSession(ctx, sessionID)
	if err != nil {
		return err
	}

	messages, err := p.loadMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		switch {
		case msg.ID < marker.MessageID:
			continue
		case msg.ID > marker.MessageID:
			if err := p.deleteMessage(ctx, sessionID, msg.ID); err != nil {
				return err
			}
		default:
			if marker.PartID == nil {
				continue
			}
			parts, err := p.loadParts(ctx, msg.ID)
			if err != nil {
				continue
			}
			cut := -1
			for i, part := range parts {
				if part.PartID() == *marker.PartID {
					cut = i
					break
				}
			}
			if cut < 0 {
				continue
			}
			for _, part := range parts[cut:] {
				if err := p.deletePart(ctx, msg.ID, part.PartID()); err != nil {
					return err
				}
			}
		}
	}

	session.Revert = nil
	return p.saveSession(session)
}

// ComputeDiff reports file-level diffs for a message range. Strategy 1
// prefers the step_start_snapshot of the earliest message and the
// step_finish_snapshot of the latest, diffed via the snapshot store.
// Strategy 2 (used when no snapshots are recorded, or the snapshot diff is
// empty) aggregates Patch parts by filepath, counting line changes via a
// line-level diff. Output is sorted by filepath for determinism.
func (p *Processor) ComputeDiff(ctx context.Context, worktree string, messages []*types.Message) ([]snapshot.FileDiff, error) {
	var fromSnapshot, toSnapshot string
	for _, msg := range messages {
		if fromSnapshot == "" {
			if v, ok := msg.Metadata["step_start_snapshot"].(string); ok && v != "" {
				fromSnapshot = v
			}
		}
		if v, ok := msg.Metadata["step_finish_snapshot"].(string); ok && v != "" {
			toSnapshot = v
		}
		if fromSnapshot == "" {
			if v, ok := msg.Metadata["snapshot"].(string); ok && v != "" {
				fromSnapshot = v
			}
		}
	}

	if fromSnapshot != "" && toSnapshot != "" {
		store := snapshot.New(worktree)
		diffs, err := store.DiffFull(ctx, fromSnapshot, toSnapshot)
		if err == nil && len(diffs) > 0 {
			sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
			return diffs, nil
		}
	}

	type stats struct{ additions, deletions int }
	byFile := make(map[string]stats)

	for _, msg := range messages {
		parts, err := p.loadParts(ctx, msg.ID)
		if err != nil {
			continue
		}
		for _, part := range parts {
			patch, ok := part.(*types.PatchPart)
			if !ok {
				continue
			}
			additions, deletions := tool.CountLineChanges(patch.OldString, patch.NewString)
			s := byFile[patch.FilePath]
			s.additions += additions
			s.deletions += deletions
			byFile[patch.FilePath] = s
		}
	}

	diffs := make([]snapshot.FileDiff, 0, len(byFile))
	for path, s := range byFile {
		diffs = append(diffs, snapshot.FileDiff{Path: path, Additions: s.additions, Deletions: s.deletions})
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs, nil
}

func (p *Processor) deleteMessage(ctx context.Context, sessionID, messageID string) error {
	return p.storage.Delete(ctx, []string{"message", sessionID, messageID})
}

func (p *Processor) deletePart(ctx context.Context, messageID, partID string) error {
	return p.storage.Delete(ctx, []string{"part", messageID, partID})
}

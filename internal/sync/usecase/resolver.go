package usecase

import (
	"time"

	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"
	"mailstream/pkg/strutil"

	"github.com/sirupsen/logrus"
)

// Decision is the resolver's verdict for one candidate against store state.
type Decision string

const (
	DecisionInsertNew           Decision = "insert_new"
	DecisionKeepExisting        Decision = "keep_existing"
	DecisionReplaceWithIncoming Decision = "replace_with_incoming"
	DecisionMergeFlags          Decision = "merge_flags"
	DecisionInsertAsDistinct    Decision = "insert_as_distinct"
)

// Resolution pairs the decision with the stored row it was made against.
type Resolution struct {
	Decision Decision
	Existing *domain.StoredMessage // nil for the insert decisions
	Reason   string
}

// fuzzyWindow bounds how far apart two observations of the same logical
// message may be when no reliable secondary identifier exists.
const fuzzyWindow = 60 * time.Second

// Resolver decides whether an inbound candidate inserts, updates, merges
// into or is discarded against the local store. It never errors on ambiguous
// input; when in doubt it over-inserts and leaves the cleanup to the bulk
// dedup job.
type Resolver struct {
	messageRepo repository.MessageRepository
	log         *logrus.Entry
}

func NewResolver(messageRepo repository.MessageRepository, log *logrus.Entry) *Resolver {
	return &Resolver{messageRepo: messageRepo, log: log}
}

// Resolve runs the priority-ordered matching rules for one candidate.
func (r *Resolver) Resolve(candidate *domain.MessageCandidate) (*Resolution, error) {
	// Rule 1: exact provider-ID match means a true duplicate delivery.
	byProvider, err := r.messageRepo.FindByProviderID(candidate.AccountID, candidate.ProviderID)
	if err != nil {
		return nil, err
	}
	if byProvider != nil {
		return &Resolution{
			Decision: DecisionKeepExisting,
			Existing: byProvider,
			Reason:   "exact provider-ID match",
		}, nil
	}

	// Rules 2/3: same secondary identifier seen through a different sync path.
	if candidate.MessageID != "" {
		byMessageID, err := r.messageRepo.FindByMessageID(candidate.AccountID, candidate.MessageID)
		if err != nil {
			return nil, err
		}
		if byMessageID != nil {
			return r.resolveAgainst(byMessageID, candidate), nil
		}
	}

	// Rule 5: fuzzy near-duplicate defense for candidates without a reliable
	// secondary identifier.
	fuzzyMatch, ambiguous, err := r.findFuzzyMatch(candidate)
	if err != nil {
		return nil, err
	}
	if ambiguous != nil {
		r.log.WithFields(logrus.Fields{
			"account_id":  candidate.AccountID,
			"provider_id": candidate.ProviderID,
			"matched_id":  ambiguous.ID,
		}).Warn("Fuzzy match conflicts with stored secondary identifier, inserting as distinct")
		return &Resolution{
			Decision: DecisionInsertAsDistinct,
			Reason:   "ambiguous fuzzy match, over-inserting for later cleanup",
		}, nil
	}
	if fuzzyMatch != nil {
		// The window already established these as the same logical message;
		// only the mutable flags can usefully change. Timestamp ordering
		// never replaces a fuzzy match.
		if flagsDiffer(fuzzyMatch, candidate) {
			return &Resolution{
				Decision: DecisionMergeFlags,
				Existing: fuzzyMatch,
				Reason:   "fuzzy sender/subject/window match, flags differ",
			}, nil
		}
		return &Resolution{
			Decision: DecisionKeepExisting,
			Existing: fuzzyMatch,
			Reason:   "fuzzy sender/subject/window match, nothing to update",
		}, nil
	}

	// Rule 4: nothing matched.
	return &Resolution{Decision: DecisionInsertNew, Reason: "no identifier match"}, nil
}

// resolveAgainst applies the timestamp and flag rules to a row matched by
// its secondary identifier.
func (r *Resolver) resolveAgainst(existing *domain.StoredMessage, candidate *domain.MessageCandidate) *Resolution {
	// Earliest-seen wins as canonical across divergent provider IDs.
	if existing.ProviderID != candidate.ProviderID {
		if candidate.ReceivedAt.Before(existing.ReceivedAt) {
			return &Resolution{
				Decision: DecisionReplaceWithIncoming,
				Existing: existing,
				Reason:   "secondary identifier match, incoming received earlier",
			}
		}
		if candidate.ReceivedAt.After(existing.ReceivedAt) {
			return &Resolution{
				Decision: DecisionKeepExisting,
				Existing: existing,
				Reason:   "secondary identifier match, existing received earlier",
			}
		}
	}

	if flagsDiffer(existing, candidate) {
		return &Resolution{
			Decision: DecisionMergeFlags,
			Existing: existing,
			Reason:   "secondary identifier match, flags differ",
		}
	}

	return &Resolution{
		Decision: DecisionKeepExisting,
		Existing: existing,
		Reason:   "secondary identifier match, nothing to update",
	}
}

// findFuzzyMatch looks for a stored row from the same sender with the same
// normalized subject received within the fuzzy window. A match carrying a
// conflicting non-empty secondary identifier is reported as ambiguous.
func (r *Resolver) findFuzzyMatch(candidate *domain.MessageCandidate) (match, ambiguous *domain.StoredMessage, err error) {
	from := candidate.ReceivedAt.Add(-fuzzyWindow)
	to := candidate.ReceivedAt.Add(fuzzyWindow)
	rows, err := r.messageRepo.FindBySenderWithin(candidate.AccountID, candidate.Sender, from, to)
	if err != nil {
		return nil, nil, err
	}

	subject := strutil.NormalizeSubject(candidate.Subject)
	for _, row := range rows {
		if strutil.NormalizeSubject(row.Subject) != subject {
			continue
		}
		if row.MessageID != "" && candidate.MessageID != "" && row.MessageID != candidate.MessageID {
			return nil, row, nil
		}
		return row, nil, nil
	}
	return nil, nil, nil
}

func flagsDiffer(existing *domain.StoredMessage, candidate *domain.MessageCandidate) bool {
	return (candidate.IsRead && !existing.IsRead) ||
		(candidate.IsStarred && !existing.IsStarred) ||
		(candidate.IsImportant && !existing.IsImportant)
}

// CleanupResult reports one bulk dedup pass.
type CleanupResult struct {
	Scanned           int `json:"scanned"`
	DuplicatesFound   int `json:"duplicates_found"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// CleanupDuplicates merges every set of live rows sharing a secondary
// identifier down to the earliest-received row, ORing flags across the set.
// Safe to run while ingestion is active; a second pass finds nothing to do.
func (r *Resolver) CleanupDuplicates(accountID string) (*CleanupResult, error) {
	total, err := r.messageRepo.CountByAccount(accountID)
	if err != nil {
		return nil, err
	}
	result := &CleanupResult{Scanned: int(total)}

	duplicatedIDs, err := r.messageRepo.FindDuplicatedMessageIDs(accountID)
	if err != nil {
		return nil, err
	}

	for _, messageID := range duplicatedIDs {
		rows, err := r.messageRepo.FindAllByMessageID(accountID, messageID)
		if err != nil {
			return result, err
		}
		if len(rows) < 2 {
			continue
		}
		result.DuplicatesFound += len(rows) - 1

		canonical := rows[0] // earliest received
		changed := false
		removeIDs := make([]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if row.IsRead && !canonical.IsRead {
				canonical.IsRead = true
				changed = true
			}
			if row.IsStarred && !canonical.IsStarred {
				canonical.IsStarred = true
				changed = true
			}
			if row.IsImportant && !canonical.IsImportant {
				canonical.IsImportant = true
				changed = true
			}
			removeIDs = append(removeIDs, row.ID)
		}

		if changed {
			if err := r.messageRepo.Update(canonical); err != nil {
				return result, err
			}
		}
		if err := r.messageRepo.Delete(removeIDs); err != nil {
			return result, err
		}
		result.DuplicatesRemoved += len(removeIDs)
	}

	return result, nil
}

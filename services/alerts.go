package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"propwise/models"
	"propwise/notify"
	"propwise/search"
)

// AlertStore is the persistence the alert scanner needs.
type AlertStore interface {
	ListActiveSavedSearches(ctx context.Context) ([]models.SavedSearch, error)
	FindMatchingListings(ctx context.Context, p search.Predicate) ([]models.Listing, error)
	UpdateSavedSearchLastChecked(ctx context.Context, id uuid.UUID, checkedAt time.Time) error
}

// SearchOutcome is what happened to one saved search during a pass.
type SearchOutcome struct {
	SearchID uuid.UUID
	Name     string
	Matched  int
	Sent     bool
	Advanced bool
	Err      error
}

// ScanResult aggregates a scan pass.
type ScanResult struct {
	StartedAt time.Time
	Checked   int
	Matched   int
	Sent      int
	Errors    int
	Outcomes  []SearchOutcome
}

// AlertScanner evaluates every active saved search against listings created
// since it was last checked and notifies the owner about new matches.
type AlertScanner struct {
	store      AlertStore
	dispatcher notify.Dispatcher
	composer   notify.Composer
	now        func() time.Time
}

func NewAlertScanner(store AlertStore, dispatcher notify.Dispatcher, composer notify.Composer) *AlertScanner {
	return &AlertScanner{
		store:      store,
		dispatcher: dispatcher,
		composer:   composer,
		now:        time.Now,
	}
}

// Scan runs one pass. Failures are isolated per saved search and counted in
// the result; only failing to load the searches aborts the pass. Callers must
// not run two passes concurrently.
func (s *AlertScanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := s.now().UTC()
	result := &ScanResult{StartedAt: start}

	searches, err := s.store.ListActiveSavedSearches(ctx)
	if err != nil {
		return result, fmt.Errorf("load saved searches: %w", err)
	}
	if len(searches) == 0 {
		log.Debug().Msg("alert scan: no active saved searches")
		return result, nil
	}

	for i := range searches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := s.evaluate(ctx, &searches[i], start)
		result.Outcomes = append(result.Outcomes, outcome)
		result.Checked++
		if outcome.Matched > 0 {
			result.Matched++
		}
		if outcome.Sent {
			result.Sent++
		}
		if outcome.Err != nil {
			result.Errors++
			log.Error().Err(outcome.Err).
				Str("search_id", outcome.SearchID.String()).
				Str("search", outcome.Name).
				Msg("saved search alert failed")
		}
	}

	log.Info().
		Int("checked", result.Checked).
		Int("matched", result.Matched).
		Int("sent", result.Sent).
		Int("errors", result.Errors).
		Msg("alert scan finished")

	return result, nil
}

func (s *AlertScanner) evaluate(ctx context.Context, ss *models.SavedSearch, start time.Time) SearchOutcome {
	outcome := SearchOutcome{SearchID: ss.ID, Name: ss.Name}

	// Bounded above by the scan start so a listing created mid-pass is left
	// for the next pass instead of being skipped by the advanced anchor.
	p := search.Build(ss).Until(start)

	matches, err := s.store.FindMatchingListings(ctx, p)
	if err != nil {
		// last_checked stays put so the next pass retries the same window.
		outcome.Err = fmt.Errorf("find matches: %w", err)
		return outcome
	}
	outcome.Matched = len(matches)

	var errs []error
	if len(matches) > 0 {
		if err := s.dispatch(ctx, ss, matches); err != nil {
			errs = append(errs, err)
		} else {
			outcome.Sent = true
		}
	}

	if err := s.store.UpdateSavedSearchLastChecked(ctx, ss.ID, start); err != nil {
		errs = append(errs, fmt.Errorf("advance last_checked: %w", err))
	} else {
		outcome.Advanced = true
	}

	outcome.Err = errors.Join(errs...)
	return outcome
}

// dispatch composes and sends the alert. A panicking dispatcher is reported
// as an error for this search only.
func (s *AlertScanner) dispatch(ctx context.Context, ss *models.SavedSearch, matches []models.Listing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	if ss.Owner == nil {
		return errors.New("saved search owner not loaded")
	}

	msg, err := s.composer.Alert(*ss.Owner, ss, matches)
	if err != nil {
		return fmt.Errorf("compose alert: %w", err)
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		return fmt.Errorf("dispatch alert: %w", err)
	}
	return nil
}

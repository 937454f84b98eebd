// Package summarizer implements the Summarizer (C10): two read-mostly
// entry points that build terminal flight/controller summary records
// purely from already-persisted data. Grounded on the teacher's
// aggregation style in cmd/collector's post-cycle reporting, generalized
// into standalone, independently-testable builder functions.
package summarizer

import (
	"context"
	"time"

	"github.com/vatpac/stats-ingestor/internal/db"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// Summarizer wires the repositories needed to build both summary kinds.
type Summarizer struct {
	flights     *db.FlightRepository
	controllers *db.ControllerRepository
	matches     *db.MatchRepository
	summaries   *db.SummaryRepository
	retentionH  int
}

func New(flights *db.FlightRepository, controllers *db.ControllerRepository, matches *db.MatchRepository, summaries *db.SummaryRepository, retentionHours int) *Summarizer {
	return &Summarizer{flights: flights, controllers: controllers, matches: matches, summaries: summaries, retentionH: retentionHours}
}

// Flight builds and persists the terminal summary for one completed
// flight, per §4.10's flight() entry point, then prunes its raw position
// history older than the retention window.
func (s *Summarizer) Flight(ctx context.Context, callsign string, logonTime time.Time, completedAt time.Time, method model.CompletionMethod, confidence float64) error {
	identity, err := s.flights.Identity(ctx, callsign, logonTime)
	if err != nil {
		return err
	}
	positions, err := s.flights.PositionHistory(ctx, callsign, logonTime)
	if err != nil {
		return err
	}

	summary := model.FlightSummary{
		Callsign:             identity.Callsign,
		LogonTime:            identity.LogonTime,
		CID:                  identity.CID,
		AircraftType:         identity.AircraftType,
		Departure:            identity.Departure,
		Arrival:              identity.Arrival,
		Route:                identity.Route,
		CruiseTAS:            identity.CruiseTAS,
		CompletedAt:          completedAt,
		CompletionMethod:     method,
		CompletionConfidence: confidence,
	}

	if len(positions) > 0 {
		first, last := positions[0], positions[len(positions)-1]
		summary.FirstLat, summary.FirstLon = first.Latitude, first.Longitude
		summary.LastLat, summary.LastLon = last.Latitude, last.Longitude
		summary.FirstSeenAt, summary.LastSeenAt = first.ObservedAt, last.ObservedAt
		for _, p := range positions {
			if p.AltitudeFt > summary.MaxAltitudeFt {
				summary.MaxAltitudeFt = p.AltitudeFt
			}
		}
	}

	spanStart, spanEnd := summary.FirstSeenAt, summary.LastSeenAt
	if spanEnd.IsZero() {
		spanEnd = completedAt
	}
	matches, err := s.matches.ForPilot(ctx, callsign, spanStart, spanEnd)
	if err != nil {
		return err
	}
	for _, m := range matches {
		summary.ControllerInteractions = append(summary.ControllerInteractions, model.ControllerInteraction{
			ControllerCallsign: m.ControllerCallsign,
			FrequencyHz:        m.FrequencyHz,
			FirstSeen:          m.FirstSeen,
			LastSeen:           m.LastSeen,
			DurationS:          m.DurationS,
			CommunicationType:  m.CommunicationType,
		})
	}

	if err := s.flights.InsertSummary(ctx, summary); err != nil {
		return err
	}
	return s.flights.DeletePositionsOlderThan(ctx, callsign, logonTime, s.retentionH)
}

// Controller builds and persists the terminal summary for one controller
// session that has just gone offline, per §4.10's controller() entry
// point.
func (s *Summarizer) Controller(ctx context.Context, callsign string) error {
	session, err := s.controllers.Session(ctx, callsign)
	if err != nil {
		return err
	}

	spanEnd := session.OfflineAt
	if spanEnd.IsZero() {
		spanEnd = time.Now().UTC()
	}

	summary := model.ControllerSummary{
		Callsign:  session.Callsign,
		OnlineAt:  session.OnlineAt,
		OfflineAt: session.OfflineAt,
		Facility:  session.Facility,
		Rating:    session.Rating,
	}

	matches, err := s.matches.ForController(ctx, callsign, session.OnlineAt, spanEnd)
	if err != nil {
		return err
	}

	freqSeen := make(map[int64]struct{})
	for _, m := range matches {
		summary.AircraftInteractions = append(summary.AircraftInteractions, model.AircraftInteraction{
			PilotCallsign: m.PilotCallsign,
			FrequencyHz:   m.FrequencyHz,
			FirstSeen:     m.FirstSeen,
			LastSeen:      m.LastSeen,
			DurationS:     m.DurationS,
		})
		if _, ok := freqSeen[m.FrequencyHz]; !ok {
			freqSeen[m.FrequencyHz] = struct{}{}
			summary.Frequencies = append(summary.Frequencies, m.FrequencyHz)
		}
	}

	return s.summaries.InsertControllerSummary(ctx, summary)
}

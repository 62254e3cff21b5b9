package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reuse causes.
const (
	CauseMissingRecord  = "missing_record"
	CauseMissingSession = "missing_session"
	CauseSessionRevoked = "session_revoked"
	CauseTokenConsumed  = "token_consumed"
	CauseRotationRace   = "rotation_race"
)

var (
	refreshReuseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_reuse_total",
			Help: "Refresh attempts treated as token reuse, by cause",
		},
		[]string{"cause"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Auth operations by outcome",
		},
		[]string{"op", "result"},
	)

	refreshRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auth_refresh_records",
			Help: "Stored refresh records by expiry state",
		},
		[]string{"state"},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = outcome(err)
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}

func outcome(err error) string {
	for _, known := range []error{
		ErrInvalidCredentials, ErrEmailTaken, ErrInvalidToken, ErrReuseDetected,
		ErrExpired, ErrSignupDisabled, ErrSessionNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "error"
}

package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sadman-arif/consultpay/internal/model"
)

// ErrDuplicateProviderEvent marks a replayed gateway webhook event.
var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapBookingErr converts the booking-overlap exclusion constraint into the
// domain conflict error and pgx.ErrNoRows into not-found.
func mapBookingErr(err error) error {
	if err == nil {
		return nil
	}
	if isPgCode(err, pgExclusionViolation) {
		return model.ErrConflict
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

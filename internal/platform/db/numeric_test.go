package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, raw := range []string{"0", "219.6", "-12.345", "1000000.0001"} {
		d := decimal.RequireFromString(raw)
		got := Decimal(Numeric(d))
		require.True(t, d.Equal(got), "round trip of %s gave %s", raw, got)
	}
}

func TestDecimalNullIsZero(t *testing.T) {
	require.True(t, Decimal(pgtype.Numeric{}).IsZero())
	require.True(t, Decimal(pgtype.Numeric{NaN: true, Valid: true}).IsZero())
}

func TestDateHelpers(t *testing.T) {
	require.False(t, Date(time.Time{}).Valid)

	in := time.Date(2024, 1, 31, 18, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	d := Date(in)
	require.True(t, d.Valid)
	require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), DateValue(d))
	require.True(t, DateValue(pgtype.Date{}).IsZero())
}

func TestOptionalHelpers(t *testing.T) {
	require.Nil(t, TimestampPtr(pgtype.Timestamptz{}))
	require.Nil(t, Int8Ptr(pgtype.Int8{}))

	id := int64(9)
	require.Equal(t, &id, Int8Ptr(Int8(&id)))

	now := time.Now()
	require.Equal(t, now.Unix(), TimestampPtr(Timestamp(&now)).Unix())
}

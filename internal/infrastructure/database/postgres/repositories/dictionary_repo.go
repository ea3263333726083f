// Package repositories provides the PostgreSQL-backed implementation of the
// mapping-dictionary store.
package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// candidateLimit caps how many rows the window queries pull back; the fuzzy
// and signature rungs only ever need a small candidate set.
const candidateLimit = 500

const entryColumns = `
	id, source_key, dest_key, source_raw, dest_raw,
	source_kind, dest_kind, source_pixels, dest_pixels,
	vendor, source, confirmations, first_seen_at, last_confirmed_at`

// DictionaryRepository is the PostgreSQL implementation of
// dictionary.Store.  Every method takes a context for cancellation and uses
// parameterised queries exclusively.
type DictionaryRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ dictionary.Store = (*DictionaryRepository)(nil)

// NewDictionaryRepository constructs a ready-to-use DictionaryRepository.
func NewDictionaryRepository(pool *pgxpool.Pool, logger logging.Logger) *DictionaryRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DictionaryRepository{pool: pool, logger: logger.Named("dictionary_repo")}
}

// FindByKey returns every entry stored under the given normalized source key.
func (r *DictionaryRepository) FindByKey(ctx context.Context, sourceKey string) ([]*mappingtypes.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM dictionary_entries
		WHERE source_key = $1
		ORDER BY confirmations DESC, last_confirmed_at DESC`,
		sourceKey,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to query dictionary by key")
	}
	return scanEntries(rows)
}

// FindByLengthWindow returns entries whose source-key length falls inside
// [minLen, maxLen], the candidate set for fuzzy matching.
func (r *DictionaryRepository) FindByLengthWindow(ctx context.Context, minLen, maxLen int) ([]*mappingtypes.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM dictionary_entries
		WHERE char_length(source_key) BETWEEN $1 AND $2
		ORDER BY confirmations DESC, last_confirmed_at DESC
		LIMIT $3`,
		minLen, maxLen, candidateLimit,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to query dictionary by length window")
	}
	return scanEntries(rows)
}

// FindBySignature returns entries matching the source kind with a pixel
// count inside [minPixels, maxPixels].
func (r *DictionaryRepository) FindBySignature(ctx context.Context, sourceKind string, minPixels, maxPixels int) ([]*mappingtypes.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM dictionary_entries
		WHERE source_kind = $1 AND source_pixels BETWEEN $2 AND $3
		ORDER BY confirmations DESC, last_confirmed_at DESC
		LIMIT $4`,
		sourceKind, minPixels, maxPixels, candidateLimit,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to query dictionary by signature")
	}
	return scanEntries(rows)
}

// UpsertConfirmation inserts a new entry or, on (source_key, dest_key)
// conflict, increments the confirmation counter, refreshes the timestamp,
// and upgrades the provenance tag when the incoming event ranks higher.
// Provenance never downgrades.
func (r *DictionaryRepository) UpsertConfirmation(ctx context.Context, e *mappingtypes.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dictionary_entries (
			source_key, dest_key, source_raw, dest_raw,
			source_kind, dest_kind, source_pixels, dest_pixels,
			vendor, source, confirmations, first_seen_at, last_confirmed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (source_key, dest_key) DO UPDATE SET
			confirmations     = dictionary_entries.confirmations + 1,
			last_confirmed_at = EXCLUDED.last_confirmed_at,
			source_pixels     = EXCLUDED.source_pixels,
			dest_pixels       = EXCLUDED.dest_pixels,
			source = CASE
				WHEN (CASE EXCLUDED.source WHEN 'user_manual' THEN 3 WHEN 'user_correction' THEN 2 WHEN 'auto_confirmed' THEN 1 ELSE 0 END)
				   > (CASE dictionary_entries.source WHEN 'user_manual' THEN 3 WHEN 'user_correction' THEN 2 WHEN 'auto_confirmed' THEN 1 ELSE 0 END)
				THEN EXCLUDED.source
				ELSE dictionary_entries.source
			END`,
		e.SourceKey, e.DestKey, e.SourceRaw, e.DestRaw,
		e.SourceKind, e.DestKind, e.SourcePixels, e.DestPixels,
		e.Vendor, string(e.Source), e.Confirmations, e.FirstSeenAt, e.LastConfirmedAt,
	)
	if err != nil {
		r.logger.Error("dictionary upsert failed",
			logging.String("source_key", e.SourceKey),
			logging.Err(err),
		)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to upsert dictionary entry")
	}
	return nil
}

// Stats returns aggregate dictionary statistics.
func (r *DictionaryRepository) Stats(ctx context.Context) (*dictionary.Stats, error) {
	st := &dictionary.Stats{BySource: make(map[string]int64)}

	err := r.pool.QueryRow(ctx, `
		SELECT count(*), coalesce(sum(confirmations), 0) FROM dictionary_entries`,
	).Scan(&st.Entries, &st.Confirmations)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count dictionary entries")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT source, count(*) FROM dictionary_entries GROUP BY source`)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to group dictionary entries")
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var n int64
		if err := rows.Scan(&src, &n); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan dictionary stats row")
		}
		st.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate dictionary stats")
	}
	return st, nil
}

func scanEntries(rows pgx.Rows) ([]*mappingtypes.Entry, error) {
	defer rows.Close()
	var out []*mappingtypes.Entry
	for rows.Next() {
		var e mappingtypes.Entry
		var source string
		err := rows.Scan(
			&e.ID, &e.SourceKey, &e.DestKey, &e.SourceRaw, &e.DestRaw,
			&e.SourceKind, &e.DestKind, &e.SourcePixels, &e.DestPixels,
			&e.Vendor, &source, &e.Confirmations, &e.FirstSeenAt, &e.LastConfirmedAt,
		)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan dictionary entry")
		}
		e.Source = mappingtypes.EventSource(source)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate dictionary entries")
	}
	return out, nil
}

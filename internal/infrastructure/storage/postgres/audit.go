package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"backoffice/internal/core/appctx"
	"backoffice/internal/core/id"
	"backoffice/internal/domain/storage"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one stored row of the operation trail.
type AuditEntry struct {
	ID                id.ID              `db:"id"`
	Operation         string             `db:"operation"`
	ItemID            id.ID              `db:"item_id"`
	Department        storage.Department `db:"department"`
	UserID            string             `db:"user_id"`
	Payload           json.RawMessage    `db:"payload"`
	PayloadCompressed []byte             `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo"`
	CreatedAt         time.Time          `db:"created_at"`
}

// AuditTrail persists operation records. It writes through the context
// querier, so records land in the same transaction as the lot mutations they
// describe. Payloads above the threshold are zstd-compressed.
type AuditTrail struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ storage.AuditTrail = (*AuditTrail)(nil)

// NewAuditTrail creates an audit trail writer.
func NewAuditTrail(txm *TxManager) (*AuditTrail, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditTrail{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record implements storage.AuditTrail.
func (t *AuditTrail) Record(ctx context.Context, rec storage.AuditRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		Operation:       rec.Operation,
		ItemID:          rec.ItemID,
		Department:      rec.Department,
		UserID:          appctx.GetUserID(ctx),
		Payload:         payload,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if len(entry.Payload) > t.compressThreshold {
		entry.PayloadCompressed = t.encoder.EncodeAll(entry.Payload, nil)
		entry.Payload = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO storage_audit (
			id, operation, item_id, department, user_id,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = t.txm.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.Operation, entry.ItemID, entry.Department, entry.UserID,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History retrieves the trail for one item, newest first. Compressed
// payloads are inflated before return.
func (t *AuditTrail) History(ctx context.Context, itemID id.ID, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, operation, item_id, department, user_id,
		       payload, payload_compressed, compression_algo, created_at
		FROM storage_audit
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := t.txm.GetQuerier(ctx).Query(ctx, sql, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.Operation, &e.ItemID, &e.Department, &e.UserID,
			&e.Payload, &e.PayloadCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.PayloadCompressed) > 0 {
			inflated, err := t.decoder.DecodeAll(e.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit payload: %w", err)
			}
			e.Payload = inflated
			e.PayloadCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

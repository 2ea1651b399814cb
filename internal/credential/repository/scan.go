package repository

import (
	"database/sql"
	"encoding/json"

	apperrors "github.com/coregate/gateway/internal/errors"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// scanner is satisfied by both *sql.Row and *sql.Rows, letting getByID and
// list share one row-to-domain mapping.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*credentialDomain.SerializedCredential, error) {
	var (
		cred            credentialDomain.SerializedCredential
		metadataRaw     []byte
		nextRotation    sql.NullTime
		lastRotationErr sql.NullString
	)

	if err := row.Scan(&cred.ID, &cred.TypeID, &cred.DekAlias, &metadataRaw, &cred.Value, &cred.CreatedAt, &cred.UpdatedAt, &nextRotation, &cred.RotationRetries, &lastRotationErr); err != nil {
		return nil, err
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &cred.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal credential metadata")
		}
	}
	if nextRotation.Valid {
		t := nextRotation.Time
		cred.NextRotationTime = &t
	}
	if lastRotationErr.Valid {
		cred.LastRotationError = &lastRotationErr.String
	}

	return &cred, nil
}

func metadataJSON(m credentialDomain.Metadata) []byte {
	if m == nil {
		m = credentialDomain.Metadata{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringAcceptsScalars(t *testing.T) {
	var row ImportRow
	payload := `{"student":{"nama":" Ahmad ","nisn":111,"nis":"S1","kelasAngkatan":2024.0,"tanggalLahir":null},"orangtua":{"noHP":800000,"jenisWali":true}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &row))

	assert.Equal(t, "Ahmad", row.Student.Name.String())
	assert.Equal(t, "111", row.Student.NISN.String())
	assert.Equal(t, "2024", row.Student.Cohort.String())
	assert.True(t, row.Student.BirthDate.Empty())
	assert.Equal(t, "800000", row.Guardian.Phone.String())
	assert.Equal(t, "true", row.Guardian.Relationship.String())
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var v struct {
		Name FlexString `json:"nama"`
	}
	require.Error(t, json.Unmarshal([]byte(`{"nama":{"first":"A"}}`), &v))
}

func TestAutoCreateDefaultsToTrue(t *testing.T) {
	var req StudentImportRequest
	require.NoError(t, json.Unmarshal([]byte(`{"data":[]}`), &req))
	assert.True(t, req.AutoCreate())

	require.NoError(t, json.Unmarshal([]byte(`{"data":[],"autoCreateAccount":false}`), &req))
	assert.False(t, req.AutoCreate())
}

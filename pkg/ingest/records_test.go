package ingest

import (
	"testing"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		record any
		field  string
	}{
		{name: "valid entity", record: &EntityRecord{Origin: "o", UID: "u"}},
		{name: "missing uid", record: &EntityRecord{Origin: "o"}, field: "uid"},
		{name: "missing origin", record: &EntityRecord{UID: "u"}, field: "origin"},
		{name: "negative weight", record: &EntityRecord{Origin: "o", UID: "u", Weight: -1}, field: "weight"},
		{name: "link without target", record: &LinkRecord{Origin: "o", Source: "a"}, field: "target"},
		{name: "self judgement", record: &JudgementRecord{Left: "a", Right: "a"}, field: "right_uid"},
		{name: "bad latitude", record: &AddressRecord{Origin: "o", UID: "u", Address: "x", Latitude: models.Float(120)}, field: "latitude"},
		{name: "bad document url", record: &DocumentRecord{Origin: "o", UID: "u", Reference: "r", URL: "not a url"}, field: "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.record)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEntityFromAttributes(t *testing.T) {
	t.Run("typed fields and extras", func(t *testing.T) {
		rec, err := EntityFromAttributes("reg", map[string]any{
			"uid":     "u1",
			"type":    "Company",
			"name":    " Acme ",
			"weight":  "3",
			"tasked":  "true",
			"sector":  "mining",
			"country": "DE",
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.UID)
		assert.Equal(t, "Company", rec.Schema)
		assert.Equal(t, "Acme", rec.Name)
		assert.Equal(t, 3, rec.Weight)
		assert.True(t, rec.Tasked)
		assert.Equal(t, "mining", rec.Data["sector"])
	})

	t.Run("tasked forms", func(t *testing.T) {
		for _, v := range []any{true, "TRUE", "1", 1, float64(1)} {
			rec, err := EntityFromAttributes("o", map[string]any{"tasked": v})
			require.NoError(t, err)
			assert.True(t, rec.Tasked, "%v", v)
		}
		rec, err := EntityFromAttributes("o", map[string]any{"tasked": "no"})
		require.NoError(t, err)
		assert.False(t, rec.Tasked)
	})

	t.Run("unparseable weight", func(t *testing.T) {
		_, err := EntityFromAttributes("o", map[string]any{"weight": "heavy"})
		require.Error(t, err)
		assert.True(t, models.IsValidationError(err))
	})
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    string
		wantErr bool
	}{
		{name: "entity", raw: `{"kind":"entity","record":{"origin":"o","uid":"u"}}`, kind: KindEntity},
		{name: "link", raw: `{"kind":"link","project":"p","record":{"origin":"o","source":"a","target":"b"}}`, kind: KindLink},
		{name: "unknown kind", raw: `{"kind":"thing","record":{}}`, wantErr: true},
		{name: "entity without uid", raw: `{"kind":"entity","record":{"origin":"o"}}`, wantErr: true},
		{name: "extra property", raw: `{"kind":"alias","record":{},"extra":1}`, wantErr: true},
		{name: "trailing content", raw: `{"kind":"alias","record":{}} {}`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, env.Kind)

			record, err := env.Decode()
			require.NoError(t, err)
			assert.NotNil(t, record)
		})
	}
}

package parsing

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func nitroCOSE(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(doc)
	assert.NoError(t, err)
	out, err := cbor.Marshal([]any{[]byte{0xa1}, map[string]any{}, payload, []byte{0x01}})
	assert.NoError(t, err)
	return out
}

func TestParseNitroDocument(t *testing.T) {
	raw := nitroCOSE(t, map[string]any{
		"module_id": "enclave-1",
		"digest":    "SHA384",
		"timestamp": uint64(1700000000000),
		"pcrs":      map[uint64][]byte{0: {0xab, 0xcd}},
		"user_data": []byte(`{"k":"v"}`),
		"cabundle":  [][]byte{[]byte("ca")},
	})

	doc, err := ParseNitroDocument(raw)

	assert.NoError(t, err)
	check.Equal(t, "enclave-1", doc.ModuleID)
	check.Equal(t, uint64(1700000000000), doc.Timestamp)
	check.Equal(t, "abcd", FormatPCR(doc.PCRs[0]))
	check.Equal(t, `{"k":"v"}`, string(doc.UserData))
	check.Equal(t, []string{"Y2E="}, EncodeCertificateBundle(doc.CABundle))
}

func TestExtractCOSEPayload_Invalid(t *testing.T) {
	short, err := cbor.Marshal([]any{[]byte{1}, []byte{2}})
	assert.NoError(t, err)
	_, err = ExtractCOSEPayload(short)
	check.Error(t, err)

	badPayload, err := cbor.Marshal([]any{[]byte{1}, map[string]any{}, "text", []byte{2}})
	assert.NoError(t, err)
	_, err = ExtractCOSEPayload(badPayload)
	check.Error(t, err)

	_, err = ExtractCOSEPayload([]byte("not cbor"))
	check.Error(t, err)
}

func TestFormatPCR_Empty(t *testing.T) {
	check.Equal(t, "", FormatPCR(nil))
}

func TestExtractCOSEPayload_Tagged(t *testing.T) {
	raw, err := cbor.Marshal(cbor.Tag{
		Number:  18,
		Content: []any{[]byte{0xa1}, map[string]any{}, []byte("payload"), []byte{0x01}},
	})
	assert.NoError(t, err)

	payload, err := ExtractCOSEPayload(raw)

	assert.NoError(t, err)
	check.Equal(t, "payload", string(payload))
}

func TestExtractCOSEPayload_WrongTag(t *testing.T) {
	raw, err := cbor.Marshal(cbor.Tag{Number: 98, Content: []any{}})
	assert.NoError(t, err)

	_, err = ExtractCOSEPayload(raw)

	check.Error(t, err)
}

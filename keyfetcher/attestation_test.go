package keyfetcher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/check"
)

func buildCOSESign1(t *testing.T, payload []byte) []byte {
	t.Helper()
	protected := []byte{0xa1, 0x01, 0x38, 0x22} // alg: ES384, arbitrary but well-formed
	arr := []any{protected, map[any]any{}, payload, []byte("signature-placeholder")}
	out, err := cbor.Marshal(arr)
	if err != nil {
		t.Fatalf("marshal COSE array: %v", err)
	}
	return out
}

func TestParseAttestationDoc(t *testing.T) {
	userData := KeyGrantUserData{KeyID: 3, SealedKey: "c2VhbGVk", GrantToken: "tok-1", KeyAlgorithm: "X25519"}
	userDataBytes, err := json.Marshal(userData)
	check.NoError(t, err)

	payload := map[string]any{
		"timestamp":   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"pcrs":        PCRs{ImageFileHash: "img", KernelHash: "kern", ApplicationHash: "app"},
		"certificate": "Y2VydA==",
		"cabundle":    []string{"Y2E="},
		"public_key":  "cGs=",
		"nonce":       "bm9uY2U=",
		"user_data":   json.RawMessage(userDataBytes),
	}
	payloadBytes, err := json.Marshal(payload)
	check.NoError(t, err)

	coseBytes := buildCOSESign1(t, payloadBytes)

	doc, rawUserData, err := ParseAttestationDoc(coseBytes)
	check.NoError(t, err)
	check.Equal(t, "img", doc.PCRs.ImageFileHash)
	check.Equal(t, "Y2VydA==", doc.Certificate)
	check.Equal(t, 1, len(doc.CABundle))

	var decodedUserData KeyGrantUserData
	check.NoError(t, json.Unmarshal(rawUserData, &decodedUserData))
	check.Equal(t, uint8(3), decodedUserData.KeyID)
	check.Equal(t, "tok-1", decodedUserData.GrantToken)
}

func TestParseAttestationDoc_MalformedArray(t *testing.T) {
	bad, err := cbor.Marshal([]any{"only-one-element"})
	check.NoError(t, err)

	_, _, err = ParseAttestationDoc(bad)
	check.Error(t, err)
}

func TestExtractCOSEPayload_WrongPayloadType(t *testing.T) {
	arr := []any{[]byte{}, map[any]any{}, "not-bytes", []byte{}}
	bad, err := cbor.Marshal(arr)
	check.NoError(t, err)

	_, err = extractCOSEPayload(bad)
	check.Error(t, err)
}

func TestAttestationCOSE_Decode(t *testing.T) {
	a := AttestationCOSE("aGVsbG8=")
	decoded, err := a.Decode()
	check.NoError(t, err)
	check.Equal(t, "hello", string(decoded))

	bad := AttestationCOSE("not-valid-base64!!!")
	_, err = bad.Decode()
	check.Error(t, err)
}

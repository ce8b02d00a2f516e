package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// coseSign1Tag is the CBOR tag for a tagged COSE_Sign1 message.
const coseSign1Tag = 18

// ExtractCOSEPayload returns the payload (element 2) of a COSE_Sign1
// structure [protected, unprotected, payload, signature]. Both the untagged
// form produced by the NSM and the tagged form produced for settlement
// receipts are accepted.
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var decoded any
	if err := cbor.Unmarshal(coseBytes, &decoded); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if tag, ok := decoded.(cbor.Tag); ok {
		if tag.Number != coseSign1Tag {
			return nil, fmt.Errorf("unexpected CBOR tag %d for COSE_Sign1", tag.Number)
		}
		decoded = tag.Content
	}

	coseArray, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: not an array")
	}
	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}
	return payload, nil
}

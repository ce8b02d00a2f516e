package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/validation"
)

func main() {
	var (
		receiptInput   = flag.String("receipt", "", "close_auction response JSON or receipt base64 (file path or inline)")
		publicKeyInput = flag.String("public-key", "", "Enclave public key PEM or key response JSON (file path or inline)")
		auctionID      = flag.String("auction-id", "", "Expected auction id (hex)")
		winner         = flag.String("winner", "", "Expected winning account")
		seller         = flag.String("seller", "", "Expected previous owner")
		price          = flag.String("price", "", "Expected settlement price")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt and --public-key are required\n")
		os.Exit(1)
	}

	input, err := buildInput(readInput(*receiptInput), readInput(*publicKeyInput))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		os.Exit(2)
	}
	if err := applyExpectations(input, *auctionID, *winner, *seller, *price); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing expectations: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateReceipt(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement receipt returned by close_auction.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <json|base64> --public-key <pem|json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <input>                 close_auction response or receipt_cose_base64 value")
	fmt.Println("  --public-key <input>              Enclave key PEM, or a key_request response")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --auction-id <hex>                Expected auction id")
	fmt.Println("  --winner <account>                Expected winner")
	fmt.Println("  --seller <account>                Expected previous owner")
	fmt.Println("  --price <decimal>                 Expected settlement price")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Input Format:")
	fmt.Println("  Each input accepts either a file path or an inline value.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-validator --receipt close.json --public-key key_response.json --winner bob --price 250")
	fmt.Println()
	fmt.Println("  Validate the key first with key-validator; this tool trusts the key it is given.")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

// buildInput accepts a close_auction response or a bare receipt, and a PEM
// key or a key_request response.
func buildInput(receiptData, keyData []byte) (*validation.ReceiptValidationInput, error) {
	input := &validation.ReceiptValidationInput{}

	trimmed := strings.TrimSpace(string(receiptData))
	if strings.HasPrefix(trimmed, "{") {
		var resp enclaveapi.Response
		if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
			return nil, fmt.Errorf("parse close response: %w", err)
		}
		if resp.Receipt == "" {
			return nil, fmt.Errorf("response has no receipt_cose_base64 (auction closed without a winner?)")
		}
		input.Receipt = resp.Receipt
	} else {
		input.Receipt = enclaveapi.COSEBase64(trimmed)
	}

	keyTrimmed := strings.TrimSpace(string(keyData))
	if strings.HasPrefix(keyTrimmed, "{") {
		var keyResp enclaveapi.KeyResponse
		if err := json.Unmarshal([]byte(keyTrimmed), &keyResp); err != nil {
			return nil, fmt.Errorf("parse key response: %w", err)
		}
		keyTrimmed = keyResp.PublicKey
	}
	input.PublicKeyPEM = keyTrimmed

	return input, nil
}

func applyExpectations(input *validation.ReceiptValidationInput, auctionID, winner, seller, price string) error {
	if auctionID != "" {
		id, err := core.ParseHash(auctionID)
		if err != nil {
			return fmt.Errorf("auction id: %w", err)
		}
		input.AuctionID = id
	}
	input.Winner = core.AccountID(winner)
	input.PreviousOwner = core.AccountID(seller)
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		input.Price = &p
	}
	return nil
}

func outputText(result *validation.ReceiptValidationResult) {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("============================")
	fmt.Println()

	if r := result.Receipt; r != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  Auction:        %s\n", r.AuctionID)
		fmt.Printf("  Asset:          %s\n", r.AssetID)
		fmt.Printf("  Previous Owner: %s\n", r.PreviousOwner)
		fmt.Printf("  Winner:         %s\n", r.Winner)
		fmt.Printf("  Price:          %s\n", r.Price)
		fmt.Printf("  Settled At:     %s\n", r.SettledAt.Format("2006-01-02T15:04:05.000Z07:00"))
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:     %v\n", result.SignatureValid)
	fmt.Printf("  Digest Valid:        %v\n", result.DigestValid)
	fmt.Printf("  Expectations Valid:  %v\n", result.ExpectationsValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("============================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":              result.IsValid(),
		"signature_valid":    result.SignatureValid,
		"digest_valid":       result.DigestValid,
		"expectations_valid": result.ExpectationsValid,
		"receipt":            result.Receipt,
		"details":            result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/validation"
)

// plainTextFormatter writes only the message, without timestamps or levels,
// which is appropriate for CLI output.
type plainTextFormatter struct{}

func (plainTextFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

var logger = &logrus.Logger{
	Out:       os.Stdout,
	Formatter: plainTextFormatter{},
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.InfoLevel,
}

func main() {
	var (
		attestationPath = flag.String("attestation", "", "Path to key response JSON file (required)")
		publicKeyPath   = flag.String("public-key", "", "Path to public key PEM file (defaults to the key in the response)")
		pcrsPath        = flag.String("pcrs", "", "Path to known PCR sets JSON file (required)")
		outputFormat    = flag.String("format", "text", "Output format: text or json")
		help            = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help || *attestationPath == "" || *pcrsPath == "" {
		showUsage()
		if *attestationPath == "" || *pcrsPath == "" {
			os.Exit(1)
		}
		os.Exit(0)
	}

	keyResponse, err := readKeyResponse(*attestationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading attestation: %v\n", err)
		os.Exit(2)
	}

	publicKey := keyResponse.PublicKey
	if *publicKeyPath != "" {
		publicKey, err = readPublicKey(*publicKeyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
			os.Exit(2)
		}
	}

	pcrSets, err := validation.LoadPCRsFromFile(*pcrsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading PCR sets: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, publicKey, validation.AttestationOptions{PCRSets: pcrSets})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			os.Exit(2)
		}
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	logger.Info("Enclave Key Attestation Validator")
	logger.Info("")
	logger.Info("Validates that the receipt signing key was generated inside a known enclave image.")
	logger.Info("")
	logger.Info("Usage:")
	logger.Info("  key-validator --attestation <path> --pcrs <path> [options]")
	logger.Info("")
	logger.Info("Required Flags:")
	logger.Info("  --attestation <path>              Path to key response JSON file")
	logger.Info("  --pcrs <path>                     Path to known PCR sets ({\"pcr_sets\": [...]})")
	logger.Info("")
	logger.Info("Optional Flags:")
	logger.Info("  --public-key <path>               PEM key to compare (default: key in the response)")
	logger.Info("  --format <text|json>              Output format (default: text)")
	logger.Info("  --help                            Show this help message")
	logger.Info("")
	logger.Info("Examples:")
	logger.Info("  key-validator --attestation key_response.json --pcrs pcrs.json")
	logger.Info("  key-validator --attestation key_response.json --pcrs pcrs.json --public-key enclave.pem --format json")
	logger.Info("")
	logger.Info("Exit Codes:")
	logger.Info("  0 - Validation passed")
	logger.Info("  1 - Validation failed")
	logger.Info("  2 - Invalid input or runtime error")
}

func readKeyResponse(path string) (*enclaveapi.KeyResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var keyResponse enclaveapi.KeyResponse
	if err := json.Unmarshal(data, &keyResponse); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if keyResponse.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("missing attestation_cose_base64 field in key response")
	}

	return &keyResponse, nil
}

func readPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func outputText(result *validation.KeyValidationResult) {
	logger.Info("Enclave Key Attestation Validator")
	logger.Info("=================================")
	logger.Info("")
	logger.Info("Summary:")
	logger.Infof("  PCRs Valid:        %v", result.PCRsValid)
	logger.Infof("  Certificate Valid: %v", result.CertificateValid)
	logger.Infof("  Signature Valid:   %v", result.SignatureValid)
	logger.Infof("  Public Key Match:  %v", result.PublicKeyMatch)

	logger.Info("")
	logger.Info("Details:")
	for _, detail := range result.ValidationDetails {
		logger.Infof("  - %s", detail)
	}

	logger.Info("")
	logger.Info("=================================")
	if result.IsValid() {
		logger.Info("VALIDATION: ✓ PASSED")
		logger.Info("Exit Code: 0")
	} else {
		logger.Info("VALIDATION: ✗ FAILED")
		logger.Info("Exit Code: 1")
	}
}

func outputJSON(result *validation.KeyValidationResult) error {
	output := map[string]any{
		"valid":             result.IsValid(),
		"pcrs_valid":        result.PCRsValid,
		"certificate_valid": result.CertificateValid,
		"signature_valid":   result.SignatureValid,
		"public_key_match":  result.PublicKeyMatch,
		"details":           result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	logger.Info(string(data))
	return nil
}

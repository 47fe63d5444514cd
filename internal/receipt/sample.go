// internal/receipt/sample.go
package receipt

import _ "embed"

// SampleReceipt is a complete receipt used for demo and test prints
//
//go:embed sample.json
var SampleReceipt string

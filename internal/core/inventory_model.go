package core

// StockLine is one (medicine, quantity) pair handed to the StockLedger.
type StockLine struct {
	MedicineID int
	Quantity   int
}

// StockChange reports a medicine's stock before and after a ledger operation.
type StockChange struct {
	MedicineID int
	Before     int
	After      int
}

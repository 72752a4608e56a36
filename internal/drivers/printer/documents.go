package printer

// ReceiptItem is one sale line.
type ReceiptItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// Receipt is a non-fiscal sale receipt.
type Receipt struct {
	ShopName     string   `json:"shopName"`
	AddressLines []string `json:"addressLines,omitempty"`
	Contact      string   `json:"contact,omitempty"`

	SaleNumber string `json:"saleNumber"`
	Date       string `json:"date"`
	Operator   string `json:"operator"`

	Items []ReceiptItem `json:"items"`

	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`

	PaymentMethod string   `json:"paymentMethod"`
	ChangeDue     *float64 `json:"changeDue,omitempty"`
	Installments  int      `json:"installments,omitempty"`
}

// CashClose is an end-of-shift register closing report.
type CashClose struct {
	ShopName string `json:"shopName"`
	Operator string `json:"operator"`
	OpenedAt string `json:"openedAt"`
	ClosedAt string `json:"closedAt"`

	OpeningBalance float64 `json:"openingBalance"`
	CashSales      float64 `json:"cashSales"`
	Supplements    float64 `json:"supplements"`
	Withdrawals    float64 `json:"withdrawals"`

	Expected float64 `json:"expected"`
	Counted  float64 `json:"counted"`
}

// Discrepancy is the counted cash minus the expected balance. Negative
// means the drawer came up short.
func (c CashClose) Discrepancy() float64 {
	return c.Counted - c.Expected
}

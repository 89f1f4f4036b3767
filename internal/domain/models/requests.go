package models

// LoginRequest authenticates a terminal. Without CustomerName the password is
// checked against the store password.
type LoginRequest struct {
	CustomerName string `json:"customerName"`
	Password     string `json:"password" binding:"required"`
}

// AddCartItemRequest puts a catalog product in the cart.
type AddCartItemRequest struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity"`
}

// UpdateCartItemRequest changes a cart line. Nil fields are left unchanged.
type UpdateCartItemRequest struct {
	Quantity *int     `json:"quantity"`
	Rate     *float64 `json:"rate"`
}

// CheckoutRequest closes the cart into a receipt.
type CheckoutRequest struct {
	CustomerName string   `json:"customerName" binding:"required"`
	Payments     Payments `json:"payments"`
}

// OrderRequest names the customer a pending-order operation applies to.
// Customers may omit it.
type OrderRequest struct {
	CustomerName string `json:"customerName"`
}

// ShareReceiptRequest asks to send a receipt's text layout to a phone number.
// ReceiptID is preferred; CustomerName and Ordinal address older receipts.
type ShareReceiptRequest struct {
	To           string `json:"to" binding:"required"`
	ReceiptID    string `json:"receiptId"`
	CustomerName string `json:"customerName"`
	Ordinal      *int   `json:"ordinal"`
}

// RecordPaymentRequest updates the payments of an existing receipt. ReceiptID is
// preferred; Ordinal addresses receipts issued before ids existed.
type RecordPaymentRequest struct {
	CustomerName string   `json:"customerName" binding:"required"`
	ReceiptID    string   `json:"receiptId"`
	Ordinal      *int     `json:"ordinal"`
	Payments     Payments `json:"payments"`
}

package checkout

// Request starts a checkout of the caller's whole cart.
type Request struct {
	PaymentMethod string  `json:"metodo_pago"`
	Notes         *string `json:"notas,omitempty"`
}

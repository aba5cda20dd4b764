package types

// Customer identifies the payer on a hosted payment page.
type Customer struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Contact string `json:"contact" validate:"required,phone"`
}

// Customer derives the payer identity from the delivery contact.
func (a ShippingAddress) Customer() Customer {
	return Customer{Name: a.FullName, Email: a.Email, Contact: a.Phone}
}

package email

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

const confirmationSubject = "Your 3D Print Order is Confirmed"

const confirmationBody = `Hi %s,

Your payment was received successfully.
File: %s
Receipt: %s

Your 3D print will be ready for collection by:
%s

Location: JKUAT Robotics Lab
Price Paid: KES %d

Thank you for using our 3D printing service at JKUAT!

- Robotics Committee
`

type Sender struct {
	dialer *gomail.Dialer
	from   string
	price  int
}

func NewSender(host string, port int, user string, password string, from string, price int) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		price:  price,
	}
}

// SendOrderConfirmation emails the payer once their file is archived.
// Callers log failures and move on; delivery is never retried.
func (s *Sender) SendOrderConfirmation(to string, filename string, receipt string, deadline time.Time) error {
	if receipt == "" {
		receipt = "N/A"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", confirmationSubject)
	m.SetBody("text/plain",
		fmt.Sprintf(confirmationBody, to, filename, receipt, deadline.Format("Mon Jan 2 2006"), s.price))

	return s.dialer.DialAndSend(m)
}

package db

import (
	"errors"
	"fmt"
)

var ErrOrderNotPending = errors.New("order is not awaiting payment")

type OrderExistsError struct {
	Filename string
}

func (e *OrderExistsError) Error() string {
	return fmt.Sprintf("Order %s exists", e.Filename)
}

type OrderNotFoundError struct {
	Filename string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order %s not found", e.Filename)
}

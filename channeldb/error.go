package channeldb

import "fmt"

var (
	ErrNoChanDBExists  = fmt.Errorf("channel db has not yet been created")
	ErrChannelNoExist  = fmt.Errorf("this channel does not exist")
	ErrChannelExists   = fmt.Errorf("a channel with this id is already registered")

	ErrInvoiceNotFound  = fmt.Errorf("unable to locate invoice")
	ErrDuplicateInvoice = fmt.Errorf("invoice with payment hash already exists")
)

package bus

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors that the typed bus errors unwrap to.
var (
	ErrAddressOutOfRange = errors.New("address not within range of this device")
	ErrBusBusy           = errors.New("bus busy")
	ErrNoDevice          = errors.New("no device at address")
	ErrDeviceFault       = errors.New("device fault")
)

// AddressError reports an access outside the window of an
// AddressMappedDevice. The wrapped device is never invoked.
type AddressError struct {
	Address    Value
	Start, End int64
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s: %#x not in [%#x, %#x)",
		ErrAddressOutOfRange, e.Address.Int(), e.Start, e.End)
}

// Unwrap returns ErrAddressOutOfRange.
func (e *AddressError) Unwrap() error {
	return ErrAddressOutOfRange
}

// ContentionError reports that the bus already has an operation in flight.
// The request was not queued; retrying is up to the caller.
type ContentionError struct {
	Bus     string
	Address Value
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: %s refused access to %#x",
		ErrBusBusy, e.Bus, e.Address.Int())
}

// Unwrap returns ErrBusBusy.
func (e *ContentionError) Unwrap() error {
	return ErrBusBusy
}

// DecodingError reports that no device window covers an address.
type DecodingError struct {
	Bus     string
	Address Value
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s: %#x on %s", ErrNoDevice, e.Address.Int(), e.Bus)
}

// Unwrap returns ErrNoDevice.
func (e *DecodingError) Unwrap() error {
	return ErrNoDevice
}

// DeviceError reports a fault raised by a device while the bus was invoking
// it. Failures that a device reports through its future are not wrapped.
type DeviceError struct {
	Bus     string
	Address Value
	Cause   any
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s at %#x: %v",
		ErrDeviceFault, e.Bus, e.Address.Int(), e.Cause)
}

// Unwrap exposes ErrDeviceFault and, when the cause is an error, the cause.
func (e *DeviceError) Unwrap() []error {
	if err, ok := e.Cause.(error); ok {
		return []error{ErrDeviceFault, err}
	}

	return []error{ErrDeviceFault}
}

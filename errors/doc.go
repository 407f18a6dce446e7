// Package errors provides standardized error handling for magicportal.
//
// # Error Classification
//
// Errors fall into three classes:
//
//   - Transient: timeouts, lost connections, temporary unavailability
//   - Invalid: malformed addresses, bad configuration, unknown interfaces
//   - Fatal: socket and bus failures that end a relay task
//
// Classification works with errors.Is and errors.As through the whole
// wrapping chain.
//
// # Relay Error Kinds
//
// Every failure a relay task or the startup path reports carries exactly
// one kind sentinel (ErrConfiguration, ErrAddressParse, ErrInterfaceNotFound,
// ErrBind, ErrMulticastJoin, ErrConnect, ErrSubscribe, ErrPublish, ErrSend,
// ErrReceive, ErrConnection). WrapKind attaches the kind and the class in one
// step:
//
//	conn, err := net.ListenUDP("udp4", addr)
//	if err != nil {
//	    return errors.WrapKind(errors.ErrBind, err, "Forwarder", "Run", "bind group socket")
//	}
//
// Callers branch on the kind, not on the message:
//
//	if errors.Is(err, errors.ErrConfiguration) {
//	    // fix the config file, restarting will not help
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows the format
//
//	"component.method: action failed: cause"
//
// so log lines read the same regardless of which package produced them.
package errors

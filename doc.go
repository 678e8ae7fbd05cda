// Package apns implements Apple's legacy binary Push Notification service
// protocol.
//
// The service accepts push notifications over a long-lived TLS connection
// and reports failures asynchronously: it sends a single 6-byte error frame
// identifying the first message it rejected, then closes the connection.
// Every notification written after the rejected one is silently dropped and
// must be resent. Connection implements that recovery protocol; Sender fans
// a stream of outgoing messages out across one Connection per certificate.
//
// This package does not speak the newer HTTP/2 provider API.
package apns

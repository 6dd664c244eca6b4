// Package viewer receives relay datagrams and writes their payloads to the
// terminal. Stdout and stdin packets go to stdout; stderr packets go to
// stderr.
package viewer

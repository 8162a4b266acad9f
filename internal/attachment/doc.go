// ABOUTME: Package doc for attachment
// ABOUTME: Describes file-to-data-URI encoding for exchanges

// Package attachment turns local files into the inline data-URI
// references that accompany an outgoing message.
package attachment

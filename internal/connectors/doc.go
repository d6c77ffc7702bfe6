// Package connectors provides readers for the output of the external
// scrapers. Each reader turns one configured source into raw records for the
// normaliser; fetching itself happens outside the digest.
package connectors

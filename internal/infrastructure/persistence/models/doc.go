// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel shared by bids and auctions
//   - auction.go: auctions table
//   - bid.go: bids table
//   - state.go: key/value state table holding the settlement cursor
package models

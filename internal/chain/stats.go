package chain

import (
	"fmt"
	"time"
)

// ChainStats summarizes one expiration's chain at a point in time.
type ChainStats struct {
	Underlying    string
	Expiration    time.Time
	StrikeCount   int
	TotalOrders   int
	TotalVolume   uint64
	TwoSidedCount int
}

func (s ChainStats) String() string {
	return fmt.Sprintf("%s %s: %d strikes, %d orders, %d volume, %d two-sided",
		s.Underlying, s.Expiration.Format(expirationLayout),
		s.StrikeCount, s.TotalOrders, s.TotalVolume, s.TwoSidedCount)
}

// UnderlyingStats summarizes one underlying across all its expirations.
type UnderlyingStats struct {
	Underlying      string
	ExpirationCount int
	TotalStrikes    int
	TotalOrders     int
	TotalVolume     uint64
}

func (s UnderlyingStats) String() string {
	return fmt.Sprintf("%s: %d expirations, %d strikes, %d orders, %d volume",
		s.Underlying, s.ExpirationCount, s.TotalStrikes, s.TotalOrders, s.TotalVolume)
}

// GlobalStats summarizes the whole hierarchy.
type GlobalStats struct {
	UnderlyingCount  int
	TotalExpirations int
	TotalStrikes     int
	TotalOrders      int
	TotalVolume      uint64
}

func (s GlobalStats) String() string {
	return fmt.Sprintf("%d underlyings, %d expirations, %d strikes, %d orders, %d volume",
		s.UnderlyingCount, s.TotalExpirations, s.TotalStrikes, s.TotalOrders, s.TotalVolume)
}

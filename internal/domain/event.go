package domain

// TrafficEvent is one measured interval of traffic for a device/application
// pair. The tuple (MAC, Timestamp, AppName) identifies an event; inserting the
// same key twice is a no-op.
type TrafficEvent struct {
	MAC       string
	AppName   string
	CatName   string
	Timestamp int64
	TxBytes   int64
	RxBytes   int64
}

// TotalBytes returns the combined uplink and downlink bytes.
func (e TrafficEvent) TotalBytes() int64 {
	return e.TxBytes + e.RxBytes
}

// ByteTotals holds downlink/uplink sums for a set of events. Downlink is rx
// from the router's point of view, uplink is tx.
type ByteTotals struct {
	DLBytes    int64
	ULBytes    int64
	TotalBytes int64
}

// DeviceTotals aggregates bytes for one device over a time range.
type DeviceTotals struct {
	MAC string
	ByteTotals
}

// DeviceAppTotal is the byte total of one application on one device.
type DeviceAppTotal struct {
	MAC        string
	AppName    string
	TotalBytes int64
}

// HourBucket is the byte total of events whose offset from the day start
// falls into Hour.
type HourBucket struct {
	Hour       int64
	TotalBytes int64
}

package auxcloud

// Region selects one of the fixed regional API clusters.
type Region string

const (
	RegionEU    Region = "eu"
	RegionUSA   Region = "usa"
	RegionChina Region = "china"
)

var apiServers = map[Region]string{
	RegionEU:    "https://app-service-deu-f0e9ebbb.smarthomecs.de",
	RegionUSA:   "https://app-service-usa-fd7cc04c.smarthomecs.com",
	RegionChina: "https://app-service-chn-31a93883.ibroadlink.com",
}

// Family is a home/group the account has access to.
type Family struct {
	FamilyID string `json:"familyid"`
	Name     string `json:"familyname"`
}

// Device is one endpoint as reported by the device listing, enriched
// with its online state and current parameters by ListDevices.
type Device struct {
	EndpointID     string `json:"endpointId"`
	ProductID      string `json:"productId"`
	FriendlyName   string `json:"friendlyName"`
	Mac            string `json:"mac"`
	DeviceTypeFlag int    `json:"devicetypeFlag"`
	Cookie         string `json:"cookie"`
	DevSession     string `json:"devSession"`

	// Populated after listing, not part of the wire record.
	Online bool           `json:"-"`
	Params map[string]any `json:"-"`
}

// Handle returns the addressing material needed to send directives to
// the device. DevSession and Cookie go stale; refresh them by
// re-listing devices.
func (d *Device) Handle() DeviceHandle {
	return DeviceHandle{
		EndpointID:     d.EndpointID,
		ProductID:      d.ProductID,
		Mac:            d.Mac,
		DeviceTypeFlag: d.DeviceTypeFlag,
		Cookie:         d.Cookie,
		DevSession:     d.DevSession,
	}
}

// DeviceHandle carries the opaque identity and transport material for
// one physical unit. The client never derives any of these fields
// itself; they come from the device listing.
type DeviceHandle struct {
	EndpointID     string
	ProductID      string
	Mac            string
	DeviceTypeFlag int
	Cookie         string
	DevSession     string
}

// Parameter is one name/value pair of an ordered parameter list. Order
// matters: the wire format pairs names and values positionally.
type Parameter struct {
	Name  string
	Value any
}

// StatsRow is one row of a device statistics report.
type StatsRow map[string]any

// StatsReport is the result of a QueryDeviceData call.
type StatsReport struct {
	Table []StatsRow `json:"table"`
}

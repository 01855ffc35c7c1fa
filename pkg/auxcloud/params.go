package auxcloud

// Well-known parameter names of the AUX HVAC line. The protocol layer
// treats all parameters as opaque name/value pairs; these constants
// exist so callers do not scatter magic strings.
const (
	ParamPower       = "pwr"
	ParamTargetTemp  = "temp"
	ParamAmbientTemp = "envtemp"
	ParamMode        = "ac_mode"
	ParamFanSpeed    = "ac_mark"

	ParamSwingVertical   = "ac_vdir"
	ParamSwingHorizontal = "ac_hdir"

	ParamEcoMode         = "ecomode"
	ParamHealth          = "ac_health"
	ParamSleep           = "ac_slp"
	ParamScreenDisplay   = "scrdisp"
	ParamSelfClean       = "ac_clean"
	ParamChildLock       = "childlock"
	ParamMildewProof     = "mldprf"
	ParamComfortableWind = "comfwind"
	ParamAuxiliaryHeat   = "ac_astheat"

	ParamPowerLimit       = "pwrlimit"
	ParamPowerLimitSwitch = "pwrlimitswitch"

	ParamErrorFlag = "err_flag"
	ParamTempUnit  = "tempunit"
	ParamSleepDIY  = "sleepdiy"
)

// Operating modes of the ac_mode parameter.
const (
	ModeCooling = 0
	ModeHeating = 1
	ModeDry     = 2
	ModeFan     = 3
	ModeAuto    = 4
)

// Fan speeds of the ac_mark parameter.
const (
	FanAuto      = 0
	FanLow       = 1
	FanMid       = 2
	FanHigh      = 3
	FanTurbo     = 4
	FanMute      = 5
	FanMidLower  = 6
	FanMidHigher = 7
)

// ProductInfo describes one known product id on the AUX/BroadLink DNA
// platform.
type ProductInfo struct {
	Type      string
	Name      string
	Supported bool
}

// productRegistry maps product ids to device types. Extend as new
// products are reported.
var productRegistry = map[string]ProductInfo{
	// Mini-split air conditioners.
	"000000000000000000000000c0620000": {Type: "AC_GENERIC", Name: "Air Conditioner", Supported: true},
	"0000000000000000000000002a4e0000": {Type: "AC_GENERIC", Name: "Air Conditioner", Supported: true},

	// Heat pumps with water heating capability.
	"000000000000000000000000c3aa0000": {Type: "HEAT_PUMP", Name: "Heat Pump", Supported: true},
}

// LookupProduct returns registry information for a product id.
func LookupProduct(productID string) (ProductInfo, bool) {
	info, ok := productRegistry[productID]
	return info, ok
}

// IsSupportedProduct reports whether a product id is known and
// supported.
func IsSupportedProduct(productID string) bool {
	info, ok := productRegistry[productID]
	return ok && info.Supported
}

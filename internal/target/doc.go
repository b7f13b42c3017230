// Package target implements cycle.Target over MQTT.
//
// A device is ready when the broker connection is up and the device's
// retained availability message says it is online. Attribute writes are
// published as JSON commands:
//
//	attrcycle/device/trackball/set  {"attribute":"cpi","value":800}
//
// Devices shared by several cyclers get one Device from a Pool, so the
// availability subscription exists once per device.
package target

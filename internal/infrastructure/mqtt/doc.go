// Package mqtt provides MQTT connectivity for attrcycled.
//
// MQTT carries both directions of the daemon's device traffic: trigger
// requests arrive on {prefix}/trigger/{cycler}, and attribute writes leave
// on {prefix}/device/{device}/set. Devices announce readiness with a
// retained availability message. See Topics for the full hierarchy.
//
// The client reconnects with exponential backoff, restores subscriptions
// after reconnecting and keeps a retained online/offline status with a
// Last Will for crashes.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllTriggers(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        id, err := client.Topics().TriggerID(topic)
//	        ...
//	    })
package mqtt

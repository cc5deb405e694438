// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqtt connects the daemon to an MQTT broker.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect with subscriptions restored on every connect
//   - a retained online/offline status topic backed by a Last Will
//   - input validation on publish and subscribe
//   - panic recovery around message handlers
//
// # Topics
//
// All topics hang below a configurable prefix (default "vallostat"):
//
//	vallostat/status                    online | offline (retained, LWT)
//	vallostat/state                     unit state (retained, json or cbor)
//	vallostat/command/<setting>         command value
//	vallostat/command/<setting>/result  ok | error text
//	vallostat/ihc/<name>                IHC point state (retained)
//	vallostat/ihc/<name>/set            IHC output command
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        setting, _ := topics.ParseCommand(topic)
//	        ...
//	    })
package mqtt

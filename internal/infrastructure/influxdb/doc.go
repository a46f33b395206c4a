// Package influxdb records automation telemetry in InfluxDB.
//
// Every phase transition of an automated vehicle and every speed command a
// controller issues becomes one point, so runs can be replayed and dwell or
// brake behaviour charted after the fact. The Client implements
// automation.Telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	eng.SetTelemetry(client)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Failed batches are reported through SetOnError.
package influxdb

package export

import (
	"fmt"
	"os"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"trainlog/internal/buffer"
	"trainlog/internal/metrics"
)

// degreesToSemicircles converts GPS degrees to the FIT semicircle unit.
const degreesToSemicircles = 2147483648.0 / 180.0

// WriteFIT encodes a sealed session as a FIT activity file: FileId,
// per-sample Records, a timer-stop Event, one Lap and one Session
// summary. The snapshot supplies the totals the samples alone cannot
// (moving time, normalized power context is not part of FIT).
func WriteFIT(path string, handle *buffer.Handle, snap metrics.Snapshot) error {
	samples, err := handle.Samples()
	if err != nil {
		return fmt.Errorf("reading session samples: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating fit file: %w", err)
	}
	defer f.Close()

	activity := proto.FIT{}

	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		Product:      0,
		SerialNumber: 1,
		TimeCreated:  handle.StartedAt,
	}
	activity.Messages = append(activity.Messages, fileID.ToMesg(nil))

	endTime := handle.StartedAt
	for _, s := range samples {
		activity.Messages = append(activity.Messages, sampleRecord(s).ToMesg(nil))
		if s.Wall.After(endTime) {
			endTime = s.Wall
		}
	}

	event := mesgdef.Event{
		Timestamp: endTime,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	activity.Messages = append(activity.Messages, event.ToMesg(nil))

	elapsedMs := uint32(snap.Elapsed.Milliseconds())
	timerMs := uint32(snap.Active.Milliseconds())
	distCm := uint32(snap.Distance * 100)
	avgPower := uint16(snap.Power.Avg)

	lap := mesgdef.Lap{
		Timestamp:        endTime,
		StartTime:        handle.StartedAt,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    distCm,
		AvgPower:         avgPower,
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
	}
	activity.Messages = append(activity.Messages, lap.ToMesg(nil))

	session := mesgdef.Session{
		Timestamp:        endTime,
		StartTime:        handle.StartedAt,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    distCm,
		AvgPower:         avgPower,
		TotalAscent:      uint16(snap.Ascent),
		TotalDescent:     uint16(snap.Descent),
		Sport:            typedef.SportCycling,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}
	activity.Messages = append(activity.Messages, session.ToMesg(nil))

	enc := encoder.New(f)
	if err := enc.Encode(&activity); err != nil {
		return fmt.Errorf("encoding fit file: %w", err)
	}
	return nil
}

// sampleRecord maps one sample to a FIT Record with the standard
// scalings: semicircle positions, mm/s speed, cm distance, altitude
// scale 5 offset 500.
func sampleRecord(s buffer.Sample) *mesgdef.Record {
	rec := &mesgdef.Record{Timestamp: s.Wall}

	if s.Lat != nil && s.Lng != nil {
		rec.PositionLat = int32(*s.Lat * degreesToSemicircles)
		rec.PositionLong = int32(*s.Lng * degreesToSemicircles)
	}
	if s.Speed != nil {
		rec.EnhancedSpeed = uint32(*s.Speed * 1000)
	}
	if s.Distance != nil {
		rec.Distance = uint32(*s.Distance * 100)
	}
	if s.Altitude != nil {
		rec.EnhancedAltitude = uint32((*s.Altitude + 500.0) * 5.0)
	}
	if s.Power != nil {
		rec.Power = uint16(*s.Power)
	}
	if s.HeartRate != nil {
		rec.HeartRate = uint8(*s.HeartRate)
	}
	if s.Cadence != nil {
		rec.Cadence = uint8(*s.Cadence)
	}
	return rec
}

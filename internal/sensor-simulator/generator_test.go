package sensor_simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/signature"
)

func testGenerator(seed int64) *Generator {
	return NewGenerator(SensorConfig{
		ID:   "sensor-01",
		Zone: "A",
		Lat:  45.0703,
		Lon:  9.0127,
	}, PrefixSigner, seed)
}

func TestNextProducesVerifiableReading(t *testing.T) {
	g := testGenerator(1)

	r := g.Next()
	assert.Equal(t, "sensor-01", r.SensorID)
	assert.Equal(t, "A", r.Zone)
	require.NotNil(t, r.GPS)
	assert.True(t, signature.Prefix{}.Verify(r), "la firma deve passare la verifica del backend")
}

func TestNextTimestampLagsBehindNow(t *testing.T) {
	g := testGenerator(2)

	before := time.Now().UTC().Add(-maxSampleLag)
	r := g.Next()
	after := time.Now().UTC()

	assert.False(t, r.Timestamp.Before(before))
	assert.False(t, r.Timestamp.After(after))
}

func TestNextStaysInPhysicalBounds(t *testing.T) {
	g := testGenerator(3)

	for i := 0; i < 1000; i++ {
		r := g.Next()
		assert.GreaterOrEqual(t, r.HumidityAir, 0.0)
		assert.LessOrEqual(t, r.HumidityAir, 100.0)
		assert.GreaterOrEqual(t, r.HumiditySoil, 0.0)
		assert.LessOrEqual(t, r.HumiditySoil, 100.0)
		assert.GreaterOrEqual(t, r.Luminosity, 0.0)
		assert.GreaterOrEqual(t, r.Temperature, -20.0)
		assert.LessOrEqual(t, r.Temperature, 60.0)
	}
}

func TestNextEventuallySpikes(t *testing.T) {
	g := testGenerator(4)

	// Con il 5% di probabilità per metrica, 2000 letture producono quasi
	// certamente almeno un picco di luminosità oltre il regime normale.
	spiked := false
	for i := 0; i < 2000; i++ {
		if g.Next().Luminosity > 1000 {
			spiked = true
			break
		}
	}
	assert.True(t, spiked)
}

func TestHMACSignerMatchesVerifier(t *testing.T) {
	key := []byte("chiave-condivisa")
	g := NewGenerator(SensorConfig{ID: "sensor-02", Zone: "B"}, HMACSigner(key), 5)

	r := g.Next()
	v := signature.NewHMAC(map[string]string{"sensor-02": string(key)})
	assert.True(t, v.Verify(r))
}

func TestGPSJitterStaysNearBase(t *testing.T) {
	g := testGenerator(6)

	var r model.Reading
	for i := 0; i < 100; i++ {
		r = g.Next()
		assert.InDelta(t, 45.0703, r.GPS.Lat, gpsJitter)
		assert.InDelta(t, 9.0127, r.GPS.Lon, gpsJitter)
	}
}

package signature

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

func TestPrefixVerify(t *testing.T) {
	v := Prefix{}

	assert.True(t, v.Verify(model.Reading{Signature: "signature_s1"}))
	assert.True(t, v.Verify(model.Reading{Signature: "signature_"}))
	assert.False(t, v.Verify(model.Reading{Signature: "bogus"}))
	assert.False(t, v.Verify(model.Reading{Signature: ""}))
	assert.False(t, v.Verify(model.Reading{Signature: "SIGNATURE_s1"}))
}

func TestHMACVerify(t *testing.T) {
	v := NewHMAC(map[string]string{"s1": "secret-one"})

	r := model.Reading{
		SensorID:     "s1",
		Zone:         "north",
		Temperature:  25.5,
		HumidityAir:  40,
		HumiditySoil: 22,
		Luminosity:   800,
	}
	r.Signature = Sign([]byte("secret-one"), r)
	assert.True(t, v.Verify(r))

	// firma valida ma dati alterati
	tampered := r
	tampered.Temperature = 99
	assert.False(t, v.Verify(tampered))

	// sensore senza chiave registrata
	unknown := r
	unknown.SensorID = "s2"
	unknown.Signature = Sign([]byte("secret-one"), unknown)
	assert.False(t, v.Verify(unknown))
}

// La stessa chiave esadecimale configurata su entrambi i lati deve chiudere
// il giro: il sensore firma con i byte decodificati, il backend decodifica
// dalla configurazione e verifica.
func TestHMACFromHexRoundTrip(t *testing.T) {
	const hexKey = "aabbccdd00112233"
	raw, err := hex.DecodeString(hexKey)
	require.NoError(t, err)

	r := model.Reading{
		SensorID:     "s1",
		Zone:         "north",
		Temperature:  25.5,
		HumidityAir:  40,
		HumiditySoil: 22,
		Luminosity:   800,
	}
	r.Signature = Sign(raw, r)

	v, err := NewHMACFromHex(map[string]string{"s1": hexKey})
	require.NoError(t, err)
	assert.True(t, v.Verify(r))

	// La chiave hex passata come byte grezzi non deve mai verificare.
	assert.False(t, NewHMAC(map[string]string{"s1": hexKey}).Verify(r))
}

func TestHMACFromHexRejectsBadKey(t *testing.T) {
	_, err := NewHMACFromHex(map[string]string{"s1": "not-hex"})
	assert.Error(t, err)
}

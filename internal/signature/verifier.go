// Package signature contiene il controllo di autenticità delle letture.
// Il Verifier è pluggabile: la pipeline di ingestione non conosce lo schema,
// così il mock a prefisso del prototipo può essere sostituito da un MAC reale
// senza toccare il resto del backend.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vitimonitor/vitimonitor/internal/model"
)

// Verifier decide se una lettura è autentica. Nessun side effect: il fallimento
// viene riportato al chiamante, mai ritentato qui.
type Verifier interface {
	Verify(r model.Reading) bool
}

// PrefixTag è il tag fisso accettato dallo schema mock del prototipo.
const PrefixTag = "signature_"

// Prefix accetta firme che iniziano con il tag fisso dei sender legittimi.
// Schema placeholder, non crittograficamente significativo: i deployment reali
// devono sostituirlo con HMAC (sotto) o una firma asimmetrica per sensore.
type Prefix struct{}

func (Prefix) Verify(r model.Reading) bool {
	return strings.HasPrefix(r.Signature, PrefixTag)
}

// HMAC verifica un HMAC-SHA256 esadecimale calcolato sul payload canonico
// della lettura, con una chiave per sensor_id.
type HMAC struct {
	keys map[string][]byte // sensor_id -> secret
}

func NewHMAC(keys map[string]string) *HMAC {
	m := make(map[string][]byte, len(keys))
	for id, k := range keys {
		m[id] = []byte(k)
	}
	return &HMAC{keys: m}
}

// NewHMACFromHex costruisce il verificatore da chiavi in esadecimale, il
// formato usato nella configurazione. La decodifica qui garantisce che i
// byte della chiave coincidano con quelli usati dal firmatario del sensore.
func NewHMACFromHex(keys map[string]string) (*HMAC, error) {
	m := make(map[string][]byte, len(keys))
	for id, k := range keys {
		raw, err := hex.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("hmac key for %s: %w", id, err)
		}
		m[id] = raw
	}
	return &HMAC{keys: m}, nil
}

func (h *HMAC) Verify(r model.Reading) bool {
	key, ok := h.keys[r.SensorID]
	if !ok {
		return false
	}
	want := Sign(key, r)
	return subtle.ConstantTimeCompare([]byte(r.Signature), []byte(want)) == 1
}

// Sign calcola la firma HMAC della lettura. Esportata perché usata anche dal
// simulatore dei sensori.
func Sign(key []byte, r model.Reading) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s|%s|%g|%g|%g|%g",
		r.SensorID, r.Zone, r.Temperature, r.HumidityAir, r.HumiditySoil, r.Luminosity)
	return hex.EncodeToString(mac.Sum(nil))
}

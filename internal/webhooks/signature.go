package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>" where the HMAC
// covers "<t>.<body>".
const SignatureHeader = "X-Fleetspan-Signature"

// SignHMAC returns the SignatureHeader value for body sent at ts.
func SignHMAC(secret string, body []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac(secret, t, body)))
}

// VerifyHMAC checks a SignatureHeader value against body. Signatures older
// than tolerance are rejected; a zero tolerance skips the age check.
func VerifyHMAC(secret string, body []byte, header string, tolerance time.Duration) bool {
	var t, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			t = v
		case "v1":
			v1 = v
		}
	}
	sec, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return false
	}
	if tolerance > 0 && time.Since(time.Unix(sec, 0)) > tolerance {
		return false
	}
	b, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secret, t, body), b)
}

func mac(secret, t string, body []byte) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(t))
	m.Write([]byte("."))
	m.Write(body)
	return m.Sum(nil)
}

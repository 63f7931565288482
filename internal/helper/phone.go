package helper

import (
	"strings"
)

// NormalizeRecipient mengubah nomor jadi alamat JID WhatsApp.
// Semua karakter non-digit dibuang, awalan 0 diganti country code,
// lalu domain ditambahkan kalau belum ada.
//
//	"0812-3456-7890" -> "6281234567890@s.whatsapp.net"
func NormalizeRecipient(number, countryCode, domain string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if strings.HasPrefix(cleaned, "0") {
		cleaned = countryCode + cleaned[1:]
	}

	suffix := "@" + domain
	if !strings.HasSuffix(cleaned, suffix) {
		cleaned += suffix
	}
	return cleaned
}

// ExtractPhoneFromJID mengambil nomor dari JID device, membuang suffix
// device dan server: "6285148107612:43@s.whatsapp.net" -> "6285148107612".
func ExtractPhoneFromJID(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide explains how to copy the session cookies the
// scraper needs out of a logged-in browser.
func ShowCookieExtractionGuide(w io.Writer) {
	line := strings.Repeat("=", 80)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "📚 INSTAGRAM SESSION COOKIES")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Follow lists are only served to a logged-in web session. Copy the")
	fmt.Fprintln(w, "cookies of that session from your browser:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "🌐 1. Log in at https://www.instagram.com")
	fmt.Fprintln(w, "🔧 2. Open Developer Tools (F12, or Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "🍪 3. Application/Storage tab → Cookies → https://www.instagram.com")
	fmt.Fprintln(w, "🔑 4. Copy the values of:")
	fmt.Fprintln(w, "      sessionid   long string containing %3A")
	fmt.Fprintln(w, "      csrftoken   32-character string")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "💡 Private accounts are only scraped when this session follows them.")
	fmt.Fprintln(w, "   Use a secondary account; cookies expire and must be refreshed.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⚠️  These cookies give full access to the account. They are stored in")
	fmt.Fprintln(w, "   the system keyring or an encrypted file, never in plain text.")
	fmt.Fprintln(w, line)
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🍪 F12 → Application → Cookies → instagram.com: copy sessionid and csrftoken")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}

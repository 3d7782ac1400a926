package flow

import (
	"fmt"
	"strings"

	"github.com/qurain/qurainbot/internal/catalog"
	"github.com/qurain/qurainbot/internal/store"
)

// adminSummary renders the structured notification sent to the administrator
// when a submission completes. Fields appear in definition order; blank
// answers are omitted.
func (e *Engine) adminSummary(phone string, def catalog.ServiceDefinition, rec store.ConversationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *%s جديد*\n\n", def.Name)
	fmt.Fprintf(&b, "👤 *رقم المرسل:* %s\n", phone)
	fmt.Fprintf(&b, "⏰ *الوقت:* %s\n\n", e.now().Format("2006-01-02 15:04:05"))
	b.WriteString("*📝 البيانات:*\n")
	for _, field := range def.Fields {
		value := strings.TrimSpace(rec.Answers[field])
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "• *%s:* %s\n", field, value)
	}
	b.WriteString("\n" + strings.Repeat("=", 30))
	return b.String()
}

// defaultConfirmation is the completion message sent to the user when the
// service definition does not override it.
func defaultConfirmation(serviceName string) string {
	return fmt.Sprintf(
		"✅ تم استلام بياناتك بنجاح!\n\n"+
			"🔹 الخدمة: %s\n"+
			"🔹 تم تحويل البيانات للإدارة\n"+
			"🔹 سيتم التواصل معكم في أقرب وقت\n\n"+
			"شكراً لك ! 🌹", serviceName)
}

// helpMessage lists the available service codes, sent when the unknown
// message policy is UnknownHelp.
func (e *Engine) helpMessage() string {
	var b strings.Builder
	b.WriteString("أهلاً بك 👋\n\nالخدمات المتاحة:\n")
	for _, code := range e.catalog.Codes() {
		def, _ := e.catalog.Lookup(code)
		fmt.Fprintf(&b, "🔹 %s - %s\n", code, def.Name)
	}
	b.WriteString("\nأرسل رقم الخدمة للبدء.")
	return b.String()
}

// phoneFromUserID strips the gateway suffix from a chat identifier, leaving
// the phone-like part used as an outbound destination.
func phoneFromUserID(userID string) string {
	if at := strings.IndexByte(userID, '@'); at >= 0 {
		return userID[:at]
	}
	return userID
}

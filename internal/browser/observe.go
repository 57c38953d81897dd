// File: internal/browser/observe.go
// Description: in-page JavaScript and its result types. The scripts are
// evaluated in the page's main world and return plain JSON objects.
package browser

import (
	"encoding/base64"
	"strings"
)

// pageSnapshot is the shape returned by observeScript.
type pageSnapshot struct {
	TextExcerpt    string   `json:"text_excerpt"`
	FormFields     []string `json:"form_fields"`
	PaymentAmount  string   `json:"payment_amount"`
	Payee          string   `json:"payee"`
	UrgencySignals []string `json:"urgency_signals"`
	DOMExcerpt     string   `json:"dom_excerpt"`
}

// actOutcome is the shape returned by actScript.
type actOutcome struct {
	Clicked bool   `json:"clicked"`
	Label   string `json:"label"`
}

// observeScript collects the page signals the risk pipeline needs:
// visible text, input fields, dollar amounts, a likely payee, and
// urgency or pressure language.
const observeScript = `(() => {
  const text = (document.body && document.body.innerText) || "";
  const excerpt = text.replace(/\s+/g, " ").trim().slice(0, 2000);

  const fields = [];
  for (const el of document.querySelectorAll("input, select, textarea")) {
    const label = el.getAttribute("aria-label") || el.name || el.id || el.placeholder || el.type || "";
    if (label && fields.length < 25) fields.push(label);
  }

  const amountMatch = text.match(/\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?/);

  let payee = "";
  const payeeMatch = text.match(/(?:pay(?:able)?\s+to|payee|billed\s+by)[:\s]+([A-Z][\w&.' ]{2,40})/i);
  if (payeeMatch) payee = payeeMatch[1].trim();

  const urgency = [];
  const patterns = [
    /act\s+now/i, /immediately/i, /account\s+(?:will\s+be\s+)?(?:suspended|closed|locked)/i,
    /within\s+\d+\s+(?:minutes|hours)/i, /final\s+(?:notice|warning)/i,
    /gift\s*card/i, /wire\s+transfer/i, /urgent/i, /expires?\s+(?:today|soon)/i,
  ];
  for (const p of patterns) {
    const m = text.match(p);
    if (m) urgency.push(m[0]);
  }

  const countdown = document.querySelector("[class*='countdown'], [id*='countdown'], [class*='timer']");
  if (countdown) urgency.push("countdown timer element");

  const dom = document.body ? document.body.innerHTML.slice(0, 4000) : "";

  return {
    text_excerpt: excerpt,
    form_fields: fields,
    payment_amount: amountMatch ? amountMatch[0].replace(/\s/g, "") : "",
    payee: payee,
    urgency_signals: urgency,
    dom_excerpt: dom,
  };
})()`

// actScript finds the best visible clickable element whose text overlaps
// the instruction's words and clicks it. The instruction is injected as
// a JSON string via jsString.
const actScript = `(() => {
  const instruction = %s.toLowerCase();
  const words = instruction.split(/\W+/).filter(w => w.length > 2);
  const candidates = document.querySelectorAll(
    "a, button, input[type=submit], input[type=button], [role=button], [role=link]");

  let best = null, bestScore = 0;
  for (const el of candidates) {
    if (!(el.offsetWidth || el.offsetHeight || el.getClientRects().length)) continue;
    const label = (el.innerText || el.value || el.getAttribute("aria-label") || "").toLowerCase().trim();
    if (!label) continue;
    let score = 0;
    for (const w of words) if (label.includes(w)) score++;
    if (label === instruction) score += words.length;
    if (score > bestScore) { bestScore = score; best = el; }
  }

  if (!best || bestScore === 0) return { clicked: false, label: "" };
  const label = (best.innerText || best.value || best.getAttribute("aria-label") || "").trim();
  best.click();
  return { clicked: true, label: label.slice(0, 80) };
})()`

// jsString renders a Go string as a JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				const hex = "0123456789abcdef"
				b.WriteByte(hex[byte(r)>>4])
				b.WriteByte(hex[byte(r)&0xf])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func encodeScreenshot(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}

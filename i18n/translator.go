package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "field" or "file").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg := t.lookup(code)
	if f := data["field"]; f != "" && msg != code {
		return msg + ": " + f
	}
	return msg
}

func (t dictTranslator) lookup(code string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "schema_not_found":
			return "スキーマファイルが見つかりません"
		case "schema_syntax":
			return "スキーマの構文エラー"
		case "circular_import":
			return "インポートが循環しています"
		case "unresolved_type":
			return "型を解決できません"
		case "type_mismatch":
			return "型が一致しません"
		case "unknown_field":
			return "未定義のフィールド番号です"
		case "truncated":
			return "入力が途中で終わっています"
		case "invalid_varint":
			return "可変長整数が不正です"
		case "invalid_tag":
			return "タグが不正です"
		case "depth_exceeded":
			return "ネストが深すぎます"
		case "json_syntax":
			return "JSONの構文エラー"
		case "invalid_utf8":
			return "UTF-8として不正な文字列です"
		case "overflow":
			return "値が範囲外です"
		case "invalid_enum":
			return "列挙値が不正です"
		case "unknown_key":
			return "未知のキーです"
		case "duplicate_key":
			return "キーが重複しています"
		}
	default: // "en"
		switch code {
		case "schema_not_found":
			return "schema file not found"
		case "schema_syntax":
			return "schema syntax error"
		case "circular_import":
			return "circular import"
		case "unresolved_type":
			return "unresolved type"
		case "type_mismatch":
			return "type mismatch"
		case "unknown_field":
			return "unknown field number"
		case "truncated":
			return "truncated input"
		case "invalid_varint":
			return "invalid varint"
		case "invalid_tag":
			return "invalid tag"
		case "depth_exceeded":
			return "max depth exceeded"
		case "json_syntax":
			return "json syntax error"
		case "invalid_utf8":
			return "invalid utf-8"
		case "overflow":
			return "value out of range"
		case "invalid_enum":
			return "invalid enum value"
		case "unknown_key":
			return "unknown key"
		case "duplicate_key":
			return "duplicate key"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }

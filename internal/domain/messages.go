package domain

import (
	"strconv"
	"strings"
)

// MessageKey identifies a user-facing message in the catalog.
type MessageKey string

const (
	MsgInvalidURL          MessageKey = "invalid_url"
	MsgMissingParams       MessageKey = "missing_params"
	MsgInvalidPayload      MessageKey = "invalid_payload"
	MsgExtractionFailed    MessageKey = "extraction_failed"
	MsgVideoUnavailable    MessageKey = "video_unavailable"
	MsgPrivateVideo        MessageKey = "private_video"
	MsgAgeRestricted       MessageKey = "age_restricted"
	MsgParseFailed         MessageKey = "parse_failed"
	MsgDownloadFailed      MessageKey = "download_failed"
	MsgInternal            MessageKey = "internal"
	MsgNotFound            MessageKey = "not_found"
	MsgSubtitlesNotFound   MessageKey = "subtitles_not_found"
	MsgDownloadInProgress  MessageKey = "download_in_progress"
	MsgRateLimited         MessageKey = "rate_limited"
	MsgTimeout             MessageKey = "timeout"
	MsgTooManyItems        MessageKey = "too_many_items"
	MsgEmptyQuery          MessageKey = "empty_query"
	MsgUnsupportedFormat   MessageKey = "unsupported_format"
	MsgInvalidTimeRange    MessageKey = "invalid_time_range"
	MsgExtractorMissing    MessageKey = "extractor_missing"
	MsgUnknownOperation    MessageKey = "unknown_operation"
	MsgUntitled            MessageKey = "untitled"
	MsgUnknownSize         MessageKey = "unknown_size"
	MsgStatusStarting      MessageKey = "status_starting"
	MsgStatusDownloading   MessageKey = "status_downloading"
	MsgStatusCompleted     MessageKey = "status_completed"
	MsgStatusBatchItem     MessageKey = "status_batch_item"
	MsgStatusConverting    MessageKey = "status_converting"
	MsgStatusCancelled     MessageKey = "status_cancelled"
	MsgStatusClientStopped MessageKey = "status_client_stopped"
)

// DefaultLocale is used when neither the request nor configuration picks one.
const DefaultLocale = "ar"

var catalog = map[string]map[MessageKey]string{
	"ar": {
		MsgInvalidURL:          "الرجاء إدخال رابط صالح.",
		MsgMissingParams:       "معلمات ناقصة!",
		MsgInvalidPayload:      "تعذر قراءة الطلب.",
		MsgExtractionFailed:    "فشل في جلب معلومات الفيديو. تأكد من أن الرابط صحيح.",
		MsgVideoUnavailable:    "الفيديو غير متاح.",
		MsgPrivateVideo:        "هذا الفيديو خاص.",
		MsgAgeRestricted:       "هذا الفيديو مقيد بالعمر ويتطلب تسجيل الدخول.",
		MsgParseFailed:         "تعذر قراءة استجابة أداة الاستخراج.",
		MsgDownloadFailed:      "حدث خطأ أثناء التحميل.",
		MsgInternal:            "حدث خطأ غير متوقع في السيرفر.",
		MsgNotFound:            "العنصر المطلوب غير موجود.",
		MsgSubtitlesNotFound:   "لا توجد ترجمات متاحة لهذا الفيديو.",
		MsgDownloadInProgress:  "يوجد تحميل جارٍ بنفس المعرف.",
		MsgRateLimited:         "طلبات كثيرة جدًا، حاول لاحقًا.",
		MsgTimeout:             "انتهت مهلة معالجة الطلب.",
		MsgTooManyItems:        "عدد الروابط أكبر من المسموح.",
		MsgEmptyQuery:          "الرجاء إدخال كلمة للبحث.",
		MsgUnsupportedFormat:   "الصيغة المطلوبة غير مدعومة.",
		MsgInvalidTimeRange:    "نطاق الوقت غير صالح.",
		MsgExtractorMissing:    "أداة الاستخراج غير متوفرة على الخادم.",
		MsgUnknownOperation:    "العملية المطلوبة غير معروفة.",
		MsgUntitled:            "بدون عنوان",
		MsgUnknownSize:         "غير معروف",
		MsgStatusStarting:      "جاري التحضير...",
		MsgStatusDownloading:   "جاري التحميل...",
		MsgStatusCompleted:     "اكتمل التحميل.",
		MsgStatusBatchItem:     "جاري تحميل العنصر {n} من {total}",
		MsgStatusConverting:    "جاري التحويل...",
		MsgStatusCancelled:     "تم الإلغاء.",
		MsgStatusClientStopped: "توقف العميل عن الاستقبال.",
	},
	"en": {
		MsgInvalidURL:          "Please enter a valid URL.",
		MsgMissingParams:       "Missing parameters!",
		MsgInvalidPayload:      "Could not read the request.",
		MsgExtractionFailed:    "Failed to fetch video information. Make sure the link is correct.",
		MsgVideoUnavailable:    "The video is unavailable.",
		MsgPrivateVideo:        "This video is private.",
		MsgAgeRestricted:       "This video is age-restricted and requires sign-in.",
		MsgParseFailed:         "Could not read the extractor response.",
		MsgDownloadFailed:      "An error occurred during the download.",
		MsgInternal:            "An unexpected server error occurred.",
		MsgNotFound:            "The requested item was not found.",
		MsgSubtitlesNotFound:   "No subtitles are available for this video.",
		MsgDownloadInProgress:  "A download with this id is already in progress.",
		MsgRateLimited:         "Too many requests, try again later.",
		MsgTimeout:             "Request processing timed out.",
		MsgTooManyItems:        "Too many URLs in one request.",
		MsgEmptyQuery:          "Please enter a search term.",
		MsgUnsupportedFormat:   "The requested format is not supported.",
		MsgInvalidTimeRange:    "Invalid time range.",
		MsgExtractorMissing:    "The extraction tool is not available on the server.",
		MsgUnknownOperation:    "Unknown operation.",
		MsgUntitled:            "Untitled",
		MsgUnknownSize:         "unknown",
		MsgStatusStarting:      "Preparing...",
		MsgStatusDownloading:   "Downloading...",
		MsgStatusCompleted:     "Download complete.",
		MsgStatusBatchItem:     "Downloading item {n} of {total}",
		MsgStatusConverting:    "Converting...",
		MsgStatusCancelled:     "Cancelled.",
		MsgStatusClientStopped: "The client stopped receiving.",
	},
}

// Localizer renders catalog messages in one locale.
type Localizer struct {
	locale string
}

// NewLocalizer returns a Localizer for locale, falling back to DefaultLocale
// when the catalog has no such locale.
func NewLocalizer(locale string) Localizer {
	if _, ok := catalog[locale]; !ok {
		locale = DefaultLocale
	}
	return Localizer{locale: locale}
}

// Locale returns the effective locale.
func (l Localizer) Locale() string {
	if l.locale == "" {
		return DefaultLocale
	}
	return l.locale
}

// Message returns the text for key. Keys missing from the locale fall back
// to the default locale, then to the key itself.
func (l Localizer) Message(key MessageKey) string {
	if msg, ok := catalog[l.Locale()][key]; ok {
		return msg
	}
	if msg, ok := catalog[DefaultLocale][key]; ok {
		return msg
	}
	return string(key)
}

// Format renders key replacing {name} placeholders from args.
func (l Localizer) Format(key MessageKey, args map[string]int) string {
	msg := l.Message(key)
	for name, v := range args {
		msg = strings.ReplaceAll(msg, "{"+name+"}", strconv.Itoa(v))
	}
	return msg
}

// ErrorMessage returns the client-facing text for err.
func (l Localizer) ErrorMessage(err error) string {
	de := AsError(err)
	if de == nil || de.MessageKey == "" {
		return l.Message(MsgInternal)
	}
	return l.Message(de.MessageKey)
}

// ResolveLocale picks the first supported language from an Accept-Language
// header, or fallback when none is supported.
func ResolveLocale(acceptLanguage, fallback string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		lang := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if _, ok := catalog[lang]; ok {
			return lang
		}
	}
	if _, ok := catalog[fallback]; ok {
		return fallback
	}
	return DefaultLocale
}

// Locales lists the supported locales.
func Locales() []string {
	return []string{"ar", "en"}
}

package services

// Texts - каталог коротких сообщений об ошибках для выбранного языка
type Texts struct {
	locale string
}

const DefaultLocale = "ar"

var catalog = map[string]map[Op]string{
	"ar": {
		OpRegister:      "فشل في إنشاء الحساب",
		OpSignIn:        "فشل في تسجيل الدخول",
		OpSignInGuest:   "فشل في الدخول كضيف",
		OpLoadProfile:   "فشل في تحميل الملف الشخصي",
		OpUpdateProfile: "فشل في تحديث الملف الشخصي",
		OpUploadAvatar:  "فشل في رفع الصورة الرمزية",
		OpCreatePost:    "فشل في إنشاء المنشور",
		OpLoadPosts:     "فشل في تحميل المنشورات",
		OpUpdatePost:    "فشل في تحديث المنشور",
		OpAddComment:    "فشل في إضافة التعليق",
		OpLoadComments:  "فشل في تحميل التعليقات",
		OpOpenChat:      "فشل في فتح المحادثة",
		OpSendMessage:   "فشل في إرسال الرسالة",
		OpLoadMessages:  "فشل في تحميل الرسائل",
		OpLoadChats:     "فشل في تحميل المحادثات",
		OpMarkRead:      "فشل في تحديث حالة القراءة",
		OpCreateStory:   "فشل في إنشاء الستوري",
		OpLoadStories:   "فشل في تحميل الستوريز",
		OpViewStory:     "فشل في تحديث مشاهدات الستوري",
		OpSharePost:     "فشل في مشاركة المنشور",
		OpUnavailable:   "هذه الميزة غير متاحة بعد",
		opDuplicate:     "اسم المستخدم مستخدم بالفعل",
		opCredentials:   "اسم المستخدم أو كلمة المرور غير صحيحة",
	},
	"en": {
		OpRegister:      "Failed to create account",
		OpSignIn:        "Failed to sign in",
		OpSignInGuest:   "Failed to sign in as guest",
		OpLoadProfile:   "Failed to load profile",
		OpUpdateProfile: "Failed to update profile",
		OpUploadAvatar:  "Failed to upload avatar",
		OpCreatePost:    "Failed to create post",
		OpLoadPosts:     "Failed to load posts",
		OpUpdatePost:    "Failed to update post",
		OpAddComment:    "Failed to add comment",
		OpLoadComments:  "Failed to load comments",
		OpOpenChat:      "Failed to open chat",
		OpSendMessage:   "Failed to send message",
		OpLoadMessages:  "Failed to load messages",
		OpLoadChats:     "Failed to load conversations",
		OpMarkRead:      "Failed to update read state",
		OpCreateStory:   "Failed to create story",
		OpLoadStories:   "Failed to load stories",
		OpViewStory:     "Failed to update story views",
		OpSharePost:     "Failed to share post",
		OpUnavailable:   "This feature is not available yet",
		opDuplicate:     "Username is already taken",
		opCredentials:   "Invalid username or password",
	},
}

// ключи для AuthError с конкретной причиной
const (
	opDuplicate   Op = "duplicate_username"
	opCredentials Op = "invalid_credentials"
)

// NewTexts выбирает каталог; неизвестный язык заменяется арабским
func NewTexts(locale string) Texts {
	if _, ok := catalog[locale]; !ok {
		locale = DefaultLocale
	}
	return Texts{locale: locale}
}

func (t Texts) Locale() string {
	if t.locale == "" {
		return DefaultLocale
	}
	return t.locale
}

func (t Texts) Message(op Op) string {
	if msg, ok := catalog[t.Locale()][op]; ok {
		return msg
	}
	return catalog[DefaultLocale][op]
}

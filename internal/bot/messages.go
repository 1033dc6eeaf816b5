package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/angelmondragon/chatshop/internal/cart"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/pricing"
	"github.com/angelmondragon/chatshop/pkg/types"
)

// Reply and inline button labels. Menu labels double as routing keys.
const (
	btnShareContact = "📞 Telefon raqamni yuborish"
	btnViewCart     = "🛍 Savatchani ko'rish"
	btnMyOrders     = "📜 Buyurtmalarim"
	btnAddToCart    = "🛒 Savatchaga qo'shish"
	btnPlaceOrder   = "📦 Buyurtma berish"
	btnClearCart    = "🔄 Savatchani tozalash"
	btnDecrease     = "➖"
	btnIncrease     = "➕"

	cmdStart  = "/start"
	cmdCancel = "/cancel"
)

const (
	msgAskContact        = "Iltimos, buyurtma berish uchun telefon raqamingizni yuboring:"
	msgRegistering       = "⏳ Ma'lumotlaringiz yuborilmoqda..."
	msgRegistered        = "✅ Ro'yxatdan muvaffaqiyatli o'tdingiz!"
	msgRegisterFailed    = "❌ Ro'yxatdan o'tishda xatolik.\n<code>%s</code>\nIltimos, /start buyrug'ini qayta yuboring yoki administrator bilan bog'laning."
	msgNotRegistered     = "❌ Ro'yxatdan o'tmagansiz yoki foydalanuvchi ma'lumotlari xato. Iltimos, /start buyrug'ini yuboring."
	msgChooseCategory    = "📦 Kategoriya tanlang:"
	msgNoCategories      = "📭 Hech qanday kategoriya topilmadi."
	msgCategoryNotFound  = "🚫 Bunday kategoriya topilmadi."
	msgEmptyCategory     = "📭 Bu kategoriyada mahsulotlar yo'q."
	msgProducts          = "🛍 Mahsulotlar:"
	msgSelectFirst       = "❌ Avval mahsulot tanlang."
	msgAddedToCart       = "✅ %s dan %d ta savatchaga qo'shildi. Savatchada jami: %d ta."
	msgCartEmpty         = "🧺 Savatchangiz hozircha bo'sh."
	msgCartAlreadyEmpty  = "🧺 Savatchangiz allaqachon bo'sh."
	msgCartCleared       = "🧹 Savatcha tozalandi!"
	msgRemoved           = "❌ %s savatchadan o'chirildi."
	msgLineNotFound      = "❌ Mahsulot topilmadi."
	msgOrderEmptyCart    = "🧺 Savatchangiz bo'sh, buyurtma berish uchun mahsulot qo'shing."
	msgOrderPlaced       = "✅ Buyurtmangiz muvaffaqiyatli qabul qilindi!"
	msgAskAddress        = "📍 Yetkazib berish manzilingizni yozing:"
	msgAddressTooShort   = "❗ Manzil juda qisqa. Kamida %d ta belgi kiriting."
	msgInvoiceTitle      = "Buyurtma uchun to'lov"
	msgInvoiceDesc       = "Yetkazib berish manzili: %s"
	msgInvoiceFailed     = "❌ To'lov hisobini yuborib bo'lmadi. Iltimos, qaytadan buyurtma bering."
	msgAwaitingPayment   = "💳 Iltimos, yuborilgan hisobni to'lang yoki /cancel buyrug'i bilan bekor qiling."
	msgCartLocked        = "💳 To'lov kutilmoqda. Savatchani o'zgartirish uchun avval /cancel yuboring."
	msgCheckoutAborted   = "🧺 Savatchangiz bo'sh bo'lib qoldi, buyurtma bekor qilindi."
	msgCanceled          = "🚫 Buyurtma bekor qilindi."
	msgNothingToCancel   = "ℹ️ Bekor qilinadigan buyurtma yo'q."
	msgPaymentDone       = "✅ To'lov qabul qilindi! Buyurtmangiz rasmiylashtirildi."
	msgPaymentOrphaned   = "⚠️ To'lov qabul qilindi, lekin faol buyurtma topilmadi. Iltimos, administrator bilan bog'laning."
	msgPaymentCommitFail = "⚠️ To'lov qabul qilindi, lekin buyurtmani yaratishda xatolik yuz berdi. Iltimos, administrator bilan bog'laning.\n<code>%s</code>"
	msgPaymentRejected   = "Buyurtma o'zgargan. Iltimos, qaytadan buyurtma bering."
	msgOrderFailed       = "❌ Buyurtmani yaratishda xatolik.\n<code>%s</code>\nIltimos, administrator bilan bog'laning."
	msgServerError       = "⚠️ Server bilan aloqa xatosi:\n<code>%s</code>\nIltimos, keyinroq qayta urinib ko'ring."
	msgNoOrders          = "📭 Hozircha buyurtmalaringiz yo'q."
	msgUnknownProduct    = "Noma'lum mahsulot"
	msgNoDescription     = "ℹ️ Tavsif mavjud emas"
	currencyLabel        = "so'm"
)

var orderStatusLabels = map[string]string{
	"active":    "Faol",
	"delivered": "Yetkazib berilgan",
	"cancelled": "Bekor qilingan",
}

func productCaption(p types.Product) string {
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = msgNoDescription
	}
	return fmt.Sprintf(
		"<b>📦 %s</b>\n💰 Narxi: <b>%s</b> %s\n🗂 Kategoriya: %s\n🧮 Zaxira: %d dona\n\n<i>%s</i>",
		html.EscapeString(p.Name),
		pricing.Display(p.Price),
		currencyLabel,
		html.EscapeString(p.CategoryName),
		p.Stock,
		html.EscapeString(description),
	)
}

func cartText(total cart.Total) string {
	blocks := make([]string, 0, len(total.Lines)+1)
	for _, line := range total.Lines {
		blocks = append(blocks, fmt.Sprintf(
			"<b>%s</b>\n🔢 %d × %s = <b>%s %s</b>",
			html.EscapeString(line.Product.Name),
			line.Quantity,
			pricing.Display(line.UnitPrice),
			pricing.Display(line.Subtotal),
			currencyLabel,
		))
	}
	blocks = append(blocks, fmt.Sprintf("<b>Umumiy narx: %s %s</b>", total.Display(), currencyLabel))
	return strings.Join(blocks, "\n\n")
}

// orderHistoryText renders order groups. products resolves product ids; a
// missing entry renders as an unknown product at zero price.
func orderHistoryText(groups []types.OrderGroup, products map[int64]types.Product) string {
	sections := make([]string, 0, len(groups))
	for _, group := range groups {
		lines := []string{fmt.Sprintf("<b>Buyurtma guruh ID: %d</b>", group.ID)}
		for _, order := range group.Orders {
			product, ok := products[order.ProductID]
			name := msgUnknownProduct
			price := "0.00"
			if ok {
				name = html.EscapeString(product.Name)
				price = pricing.Display(product.Price)
			}
			lines = append(lines, fmt.Sprintf(
				"  📦 %s\n  🔢 Miqdor: %d ta\n  💰 Narxi: %s %s\n  📊 Jami: %s %s",
				name,
				order.Quantity,
				price, currencyLabel,
				pricing.Display(order.Subtotal), currencyLabel,
			))
		}
		paid := "To'lanmagan"
		if group.IsPaid {
			paid = "To'langan"
		}
		status, ok := orderStatusLabels[group.Status]
		if !ok {
			status = "Noma'lum"
		}
		lines = append(lines, fmt.Sprintf(
			"💳 To'lov holati: %s\n📦 Holati: %s\n📊 Umumiy narx: %s %s",
			paid, status, pricing.Display(group.TotalPrice), currencyLabel,
		))
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return "📜 Buyurtmalaringiz:\n\n" + strings.Join(sections, "\n\n")
}

// errorDetail renders err for a chat reply. Only user facing codes show their
// own message; the rest show the public message for the code, so backend
// bodies and causes stay in the logs.
func errorDetail(err error) string {
	code := pkgerrors.CodeOf(err)
	meta := pkgerrors.MetadataFor(code)
	detail := meta.PublicMessage
	if typed := pkgerrors.As(err); typed != nil && meta.UserFacing && typed.Message() != "" {
		detail = typed.Message()
	}
	return html.EscapeString(string(code) + ": " + detail)
}

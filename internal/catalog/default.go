package catalog

// Default returns the built-in service catalog. The codes and flows mirror
// the municipality's published service menu.
func Default() *Catalog {
	c, err := New([]ServiceDefinition{
		{
			Code: "40",
			Name: "تسجيل الأسر المنتجة",
			Steps: []string{
				"📝 ما اسم الأسرة أو المشروع؟",
				"🍽️ ما نوع المنتجات التي تقدمونها؟",
				"📱 ما رقم التواصل؟",
			},
			Fields: []string{"اسم الأسرة", "نوع المنتجات", "رقم التواصل"},
		},
		{
			Code: "50",
			Name: "تسجيل السائقين",
			Steps: []string{
				"📝 ما اسم السائق؟",
				"🚗 ما نوع السيارة؟",
				"📱 ما رقم التواصل؟",
			},
			Fields: []string{"اسم السائق", "نوع السيارة", "رقم التواصل"},
		},
		{
			Code: "60",
			Name: "تسجيل العمال",
			Steps: []string{
				"📝 ما اسم العامل؟",
				"🔧 ما نوع العمل أو المهنة؟",
				"📱 ما رقم التواصل؟",
			},
			Fields: []string{"اسم العامل", "المهنة", "رقم التواصل"},
		},
		{
			Code: "100",
			Name: "الاقتراحات والملاحظات",
			Steps: []string{
				"💡 اكتب اقتراحك أو ملاحظتك وسيتم إيصالها للإدارة:",
			},
			Fields:       []string{"الاقتراح"},
			Confirmation: "✅ تم استلام اقتراحك بنجاح!\n\nشكراً لمساهمتك في تطوير الخدمات 🌹",
		},
	})
	if err != nil {
		// The built-in catalog is validated at test time; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

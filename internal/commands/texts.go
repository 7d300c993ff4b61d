package commands

const welcomeText = `🌤️ *Selamat datang di %s!*

Bot ini membantu Anda mendapatkan informasi cuaca dari BMKG dan generate artikel berita cuaca otomatis.

📋 *Command yang tersedia:*
/artikel - Generate artikel cuaca random (4 kota)
/artikel [kota1] [kota2] ... - Generate artikel dengan kota pilihan (1-4 kota)
/cuaca [kota] - Info cuaca singkat untuk kota tertentu
/cuaca3 - Prakiraan 3 kota (WIB, WITA, WIT)
/cari [kota] - Cari kota di database
/kota - Lihat kota yang sedang dipilih
/random - Pilih 4 kota random baru
/provinsi [kode] - Daftar provinsi atau kota dalam provinsi
/list - Lihat daftar kota yang tersedia
/stats - Statistik database
/help - Tampilkan bantuan

💡 Contoh penggunaan:
` + "`/artikel`" + ` - 4 kota random
` + "`/artikel Bandung`" + ` - Bandung + 3 kota random
` + "`/artikel Jakarta Bandung Surabaya Denpasar`" + ` - 4 kota spesifik
` + "`/cuaca Jakarta`" + `

Data cuaca dari BMKG Indonesia 🇮🇩`

const helpText = `📖 *Panduan Penggunaan*

*1. Generate Artikel Cuaca*
/artikel - Generate artikel dengan 4 kota random
/artikel [kota1] [kota2] ... - Generate artikel dengan kota tertentu (1-4 kota)

Contoh:
• ` + "`/artikel Jakarta`" + ` - Jakarta + 3 kota random
• ` + "`/artikel Jakarta Bandung`" + ` - Jakarta, Bandung + 2 kota random

*2. Info Cuaca Singkat*
/cuaca [nama kota] - Informasi cuaca real-time
/cuaca3 - Satu kota dari setiap zona waktu

*3. Cari Kota*
/cari [nama kota] - Cari kota di database
/provinsi - Daftar provinsi
/provinsi [kode] - Kota dalam provinsi
/list - Daftar kota per zona waktu

*4. Manajemen Kota*
/kota - Lihat kota yang sedang dipilih
/random - Pilih 4 kota random baru
/stats - Statistik database dan status AI

Data cuaca dari BMKG Indonesia 🇮🇩`

const (
	notFoundText = "❌ Kota '%s' tidak ditemukan.\n\nGunakan /cari %s untuk mencari kota yang mirip."
	errorText    = "⚠️ Terjadi kesalahan saat memproses permintaan Anda.\n\nSilakan coba lagi dalam beberapa saat atau hubungi admin jika masalah berlanjut."
	unknownText  = "❓ Maaf, saya tidak mengerti perintah tersebut.\n\nKetik /help untuk melihat perintah yang tersedia."
	footer       = "Data dari BMKG Indonesia 🇮🇩"
)

var greetings = []string{"halo", "hallo", "hai", "hi", "hello", "hey", "pagi", "siang", "sore", "malam", "selamat", "assalamualaikum", "start", "mulai"}

var helpWords = []string{"help", "bantuan", "menu", "tolong", "?"}

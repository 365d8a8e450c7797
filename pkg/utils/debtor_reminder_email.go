package utils

import (
	"fmt"
	"time"
)

func SendDebtorReminderEmail(to, userName, amount, currency, groupName string, oldestDebt time.Time) error {
	subject := fmt.Sprintf("Reminder: you owe %s %s in '%s'", currency, amount, groupName)

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<title>Payment Reminder</title>
	<style>
		body { font-family: 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f6f8f7; margin: 0; padding: 0; color: #333; }
		.container { max-width: 480px; margin: 25px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border-top: 5px solid #d9534f; }
		.header { background-color: #d9534f; color: #ffffff; text-align: center; padding: 18px 12px; }
		.header h1 { margin: 0; font-size: 18px; font-weight: 600; }
		.content { padding: 20px 18px; font-size: 14px; line-height: 1.6; color: #444; }
		.amount-box { background: #fff6f6; border: 1px solid #f1c1c1; border-radius: 8px; padding: 12px 14px; margin: 16px 0; text-align: center; }
		.amount-box h3 { margin: 0; color: #d9534f; font-size: 16px; font-weight: 700; }
		.amount-box p { margin: 6px 0 0; font-size: 13px; color: #555; }
		.footer { background: #f6f6f6; text-align: center; padding: 14px; font-size: 12px; color: #777; }
	</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>Payment Reminder</h1></div>
			<div class="content">
				<p>Hi %s,<br><br>
				This is a friendly reminder that you still have an outstanding balance of
				<b>%s %s</b> in your group <b>%s</b>.</p>
				<div class="amount-box">
					<h3>%s %s Due</h3>
					<p>Group: %s</p>
					<p>Oldest unsettled expense: %s</p>
				</div>
				<p>Open Splitpocket and settle up to keep your group ledger balanced.</p>
			</div>
			<div class="footer">&copy; %d Splitpocket</div>
		</div>
	</body>
	</html>
	`, userName, currency, amount, groupName, currency, amount, groupName, oldestDebt.Format("Jan 2, 2006"), time.Now().Year())

	return SendEmail(to, subject, body)
}

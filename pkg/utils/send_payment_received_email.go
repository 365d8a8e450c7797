package utils

import (
	"fmt"
	"time"
)

func SendPaymentReceivedEmail(to, payerName, amount, currency, groupName string, settledCount int, date time.Time) error {
	subject := fmt.Sprintf("You've Been Paid — %s settled up in '%s'", payerName, groupName)

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<title>Payment Received</title>
	<style>
		body { font-family: 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f6f8f7; margin: 0; padding: 0; color: #333; }
		.container { max-width: 480px; margin: 25px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border-top: 5px solid #0a4d3c; }
		.header { background-color: #0a4d3c; color: #ffffff; text-align: center; padding: 18px 12px; }
		.header h1 { margin: 0; font-size: 18px; font-weight: 600; }
		.content { padding: 20px 18px; font-size: 14px; line-height: 1.6; color: #444; }
		.amount-box { background: #f2fdf6; border: 1px solid #bfe7cb; border-radius: 8px; padding: 12px 14px; margin: 16px 0; text-align: center; }
		.amount-box h3 { margin: 0; color: #0a4d3c; font-size: 16px; font-weight: 700; }
		.amount-box p { margin: 6px 0 0; font-size: 13px; color: #555; }
		.footer { background: #f0f6f2; text-align: center; padding: 14px; font-size: 12px; color: #777; }
	</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>You've Been Paid</h1></div>
			<div class="content">
				<p>Hi there,<br><br>
				Good news! <b>%s</b> just settled up <b>%s %s</b> with you in the group <b>%s</b>.</p>
				<div class="amount-box">
					<h3>%s %s Received</h3>
					<p>Debts cleared: %d</p>
					<p>Date: %s</p>
				</div>
				<p>The settled expenses are now marked as paid in your group ledger.</p>
			</div>
			<div class="footer">&copy; %d Splitpocket</div>
		</div>
	</body>
	</html>
	`, payerName, currency, amount, groupName, currency, amount, settledCount, date.Format("3:04 PM, Jan 2 2006"), time.Now().Year())

	return SendEmail(to, subject, body)
}

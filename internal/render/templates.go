// Script bodies appended verbatim after each generated data table. The THS
// interpreter runs them against the embedded barsdata map; their text is
// fixed and never touched by the writers.
package render

// scriptIndexVolume renders the daily and minute volume overlay for the market index.
const scriptIndexVolume = `

from datetime import datetime,timedelta

V1_LIST   = []
OO_LIST   = []
CC_LIST   = []

for i in range(0,total):
    proo=get("OPEN", i)       
    prcc=get("CLOSE", i)      
    V0=get("VOLUME",i)/100    
        
    nt=int(get("TIME", i))  # eg. 20240412
    tkey1 = str(nt)
    
    if tkey1 in barsdata:
        row  = barsdata[tkey1]
        proo=row[0]  
        prcc=row[1] 
        vv1 =row[2]  
        
        V1_LIST.append(vv1)
        OO_LIST.append(proo)
        CC_LIST.append(prcc)
        continue
    else: 
        dt = datetime.fromtimestamp(nt)#-timedelta(hours=8)
        tkey = str(dt.strftime('%Y%m%d %H:%M:%S'))
        
        if tkey in bars1m:
            row  = bars1m[tkey]
            proo=row[0]  
            prcc=row[1] 
            vv1 =row[2]  
            
            V1_LIST.append(vv1)
            OO_LIST.append(proo)
            CC_LIST.append(prcc)
            
        else: 
            V1_LIST.append(0)
            OO_LIST.append(0)
            CC_LIST.append(0)


for i in range(1,total):
    SL0 = V1_LIST[i]
    SL1 = V1_LIST[i-1]
    hevo.save("V1", SL0, i) 
    hevo.save("V2", SL0+SL1, i) 
    
    if OO_LIST[i]<CC_LIST[i]:
        hevo.save("UP", SL0, i) 
    else:
        hevo.save("DOWN", SL0, i)         
        
draw.stick("V2",14, 1)
draw.stick("V1", 5, 1)
# draw.curve_right("PE","#735595")

draw.stick("UP", 4, 1)
draw.stick("DOWN", 8, 2)

`

// scriptHeadTailVolume renders the head/tail minute volume sticks (v931, v932, v150).
const scriptHeadTailVolume = `

#=====================
OO_LIST   = []
CC_LIST   = []
VV_LIST   = []

V1_LIST   = []
V2_LIST   = []
V3_LIST   = []

# num = param(5)

def calculate_median(nums):
    if not nums:
        raise ValueError("The list is empty. Median cannot be calculated.")
    
    # 排序列表
    nums_sorted = sorted(nums)
    n = len(nums_sorted)
    
    # 奇数长度
    if n % 2 == 1:
        return nums_sorted[n // 2]
    # 偶数长度
    else:
        mid1 = nums_sorted[n // 2 - 1]
        mid2 = nums_sorted[n // 2]
        return (mid1 + mid2) / 2
    
#=====================
for i in range(0,total):
    oo = get("OPEN", i)
    cc = get("CLOSE", i)
    vv = get("VOLUME",i)/100
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    OO_LIST.append(oo)
    CC_LIST.append(cc)
    VV_LIST.append(vv)
    
    if tkey in barsdata:
        data  = barsdata[tkey]
        v1 = data[0]
        v2 = data[1]
        v3 = data[2]
        # pet  = data[4]
        
        V1_LIST.append(v1)
        V2_LIST.append(v1+v2)
        V3_LIST.append(v3)
        
    else: 
        V1_LIST.append(0)
        V2_LIST.append(0)
        V3_LIST.append(0)

#=====================
for i in range(1,total):
    oo  = OO_LIST[i]
    cc  = CC_LIST[i]
    v11 = V1_LIST[i]
    v10 = V1_LIST[i-1]
    v22 = V2_LIST[i]
    v33 = V3_LIST[i]
    
    hevo.save("V1", v11, i) 
    hevo.save("V2", v22, i) 
    hevo.save("V3", v33, i) 
    
    if i>1 and v10>0:
        hevo.save("VV%", 100.0*v11/v10, i) 
        
    if v11>0:
        hevo.save("V93%", 100.0*v33/v11, i) 
    
    if oo<cc:
        hevo.save("U", v11, i) 
    else:
        hevo.save("D", v11, i) 
        
    # Show number of ratio for v931/v931[-1]
    if v11>v10*1.99 and v10>0:
        msg = str(round(v11/v10,1))
        text(V1_LIST[i]*1.3, i, msg, 3) # To set ratio value above the bars 

# To show a horizontal line for v150 
for i in range(begin,end): 
    v3 = V3_LIST[i] 
    draw.line(v3, i, v3, i+1, "#FF000D") 
    
#=====================
draw.stick("V2",14, 1)
draw.stick("V1", 5, 1)

# draw.color_stick("V3","#735595",2) 
draw.color_stick("V3") 
# draw.curve("V3") 
draw.curve_right("VV%", 9, 0)  # set to no-draw 
draw.curve_right("V93%", 5, 0) # set to no-draw 
# draw.curve_right("PE","#735595")

draw.stick("D", 8, 2)
draw.stick("U", 4, 1)



`

// scriptWindowVolume renders the opening-window volume sticks with the P/E curve (v935, v940, pe).
const scriptWindowVolume = `

V1_LIST   = []
V3_LIST   = []
# 成交量列表 = []

for i in range(0,total):
    proo=get("OPEN", i)       #获取每条K线上的开盘价
    prcc=get("CLOSE", i)      #获取每条K线上的收盘价
    V0=get("VOLUME",i)/100      # 当前K线成交量
        
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    
    if tkey in barsdata:
        row  = barsdata[tkey]
        vv1 = row[0]
        vv2 = row[1]
        pet = row[2]
        
        V1_LIST.append(vv1)
        V3_LIST.append(vv2)
        
        hevo.save("V1", vv1, i) 
        hevo.save("V2", vv1+vv2, i) 
            
        hevo.save("PE", pet, i) 
        
        if proo<prcc:
            hevo.save("UP", vv1, i) 
        else:
            hevo.save("DOWN", vv1, i) 
    else: 
        V1_LIST.append(0)
        V3_LIST.append(0)

for i in range(1,total):
    SL0 = V1_LIST[i]
    SL1 = V1_LIST[i-1]
        
    if SL0>SL1*1.99 and SL1>0:
        # 成交量与首量背离，且首量缩量，而日成交量放量：此时表示主力没有在早盘出手，且盘中有大卖盘，所以应卖出
        msg = str(round(SL0/SL1,1))
        text(V1_LIST[i]*1.3, i, msg, 3)

# for i in range(begin,end):    
#     SLL = V3_LIST[i]    
#     draw.line(SLL, i, SLL, i+1, "#FF000D")  #画一条数值为尾量的直线到下一个K线
        
draw.stick("V2",14, 1)
draw.stick("V1", 5, 1)
draw.curve_right("PE","#735595")

draw.stick("UP", 4, 1)
draw.stick("DOWN", 8, 2)

`

// scriptVolumeRatio renders the head/tail volume rebased against the rolling median daily volume.
const scriptVolumeRatio = `

#=====================
OO_LIST   = []
CC_LIST   = []
VV_LIST   = []

V1_LIST   = []
V2_LIST   = []
V3_LIST   = []

num = param(5)

def calculate_median(nums):
    if not nums:
        raise ValueError("The list is empty. Median cannot be calculated.")
    
    nums_sorted = sorted(nums)
    n = len(nums_sorted)
    
    if n % 2 == 1:
        return nums_sorted[n // 2]
    else:
        mid1 = nums_sorted[n // 2 - 1]
        mid2 = nums_sorted[n // 2]
        return (mid1 + mid2) / 2
    
#=====================
for i in range(0,total):
    oo = get("OPEN", i)
    cc = get("CLOSE", i)
    vv = get("VOLUME",i)/100
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    OO_LIST.append(oo)
    CC_LIST.append(cc)
    VV_LIST.append(vv)
    
    if tkey in barsdata:
        data  = barsdata[tkey]
        v1 = data[0]/100
        v2 = data[1]/100
        v3 = data[2]/100
        # pet  = data[4]
        
        V1_LIST.append(v1)
        V2_LIST.append(v2)
        V3_LIST.append(v3)
        
    else: 
        V1_LIST.append(0)
        V2_LIST.append(0)
        V3_LIST.append(0)

vmed_list = VV_LIST[:num]
#=====================
for i in range(num,total):
    oo  = OO_LIST[i]
    cc  = CC_LIST[i]
    vv  = VV_LIST[i]
    
    v11 = V1_LIST[i]
    v10 = V1_LIST[i-1]
    v22 = V2_LIST[i]
    v33 = V3_LIST[i]
    
    vmed = calculate_median(VV_LIST[i-num:i])
    
    # hevo.save("V1", v11, i) 
    # hevo.save("V2", v22, i) 
    # hevo.save("V3", v33, i) 
    
    rr1 = 100.0*v11/vmed 
    rr2 = 100.0*(v11+v22)/vmed 
    rr3 = 100.0*v33/vmed 
    
    vmed_list.append(rr1)
    
    if vmed>0:
        hevo.save("V1/Vmed", rr1, i) 
        hevo.save("V2/Vmed", rr2, i) 
        hevo.save("V3/Vmed", rr3, i) 

    # Note: This should be the last save params. 
    if oo<cc:
        hevo.save("U", rr1, i) 
    else:
        hevo.save("D", rr1, i) 
    
#=====================
vr_max = max(vmed_list[begin:end])
if vr_max>50:
    draw.line(50, begin, 50, end, "#507efbb3") 

# if vr_max>30:
#     draw.line(30, begin, 30, end, "#507efbb3") 

if vr_max>20:
    draw.line(20, begin, 20, end, "#507efbb3") 

if vr_max>10:
    draw.line(10, begin, 10, end, "#507efbb3") 

# if vr_max>5:
#     draw.line(5,  begin, 5,  end, "#507efbb3") 

draw.curve_right("V3/Vmed", "#80ef1de7", 1)  # set to no-draw 
# draw.curve("V1/v", "#30c9ff27", 1)  # set to no-draw 
# draw.curve_right("PE","#735595")

draw.stick("V2/Vmed",14, 1)
draw.stick("V1/Vmed", 5, 1)

# draw.color_stick("V3","#735595",2) 
# draw.color_stick("V3") 
# draw.curve("V3") 

draw.stick("D", 8, 2)
draw.stick("U", 4, 1)

`

// scriptUpDown renders the up/down activity-ratio sticks.
const scriptUpDown = `

#=====================
V1_LIST   = []
V2_LIST   = []
# 成交量列表 = []

#=====================
for i in range(0,total):
    proo=get("OPEN", i)       #获取每条K线上的开盘价
    prcc=get("CLOSE", i)      #获取每条K线上的收盘价
    V0=get("VOLUME",i)/100      # 当前K线成交量
    
    # 成交量列表.append(V0)
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    
    if tkey in barsdata:
        row  = barsdata[tkey]
        vv1 = row[0]
        vv2 = row[1]
        
        V1_LIST.append(vv1)
        V2_LIST.append(vv2)
        
        hevo.save("U1", vv1, i) 
        hevo.save("U2", vv2, i) 
        hevo.save("A2", vv1+vv2, i) 
            
        if proo<prcc:
            hevo.save("U", vv1, i) 
        else:
            hevo.save("D", vv1, i) 
    else: 
        V1_LIST.append(0)
        V2_LIST.append(0)

#=====================
for i in range(1,total):
    v11 = V1_LIST[i]
    v10 = V1_LIST[i-1]
        
    if v11>v10*1.99 and v10>0:
        msg = str(round(v11/v10,1))
        text(V1_LIST[i]*1.3, i, msg, 3)

# for i in range(begin,end):    
#     SLL = V3_LIST[i]    
#     draw.line(SLL, i, SLL, i+1, "#FF000D")  #

#=====================
draw.stick("A2",14, 1)
draw.stick("U1", 5, 1)

draw.curve("U2", 6, 1)

draw.stick("U", 4, 1)
draw.stick("D", 8, 2)


`

// scriptGoldenAvg renders the volume-weighted golden price curve on the main chart.
const scriptGoldenAvg = `

V1_LIST   = []
for i in range(0,total):
    proo=get("OPEN", i)       
    prcc=get("CLOSE", i)      
    V0=get("VOLUME",i)/100 
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    
    if tkey in barsdata:
        row  = barsdata[tkey]
        vv1 = row[0]
        
        V1_LIST.append(vv1)        
        hevo.save("PVJ", vv1, i) 
        
    else: 
        V1_LIST.append(0)

draw.curve("PVJ")

`

// scriptCostCurves renders the cost-basis price curves on the main chart.
const scriptCostCurves = `

#=====================
OO_LIST   = []
CC_LIST   = []
# VV_LIST   = []

V1_LIST   = []
V2_LIST   = []
V3_LIST   = []


#=====================
for i in range(0,total):
    oo = get("OPEN", i)
    cc = get("CLOSE", i)
    # vv = get("VOLUME",i)/100
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    OO_LIST.append(oo)
    CC_LIST.append(cc)
    # VV_LIST.append(vv)
    
    if tkey in barsdata:
        data  = barsdata[tkey]
        c0 = data[0]
        c1 = data[1]
        c2 = data[2]
        # pet  = data[4]
        
        # V1_LIST.append(c0)
        # V2_LIST.append(c1)
        # V3_LIST.append(c2)
        
        save("CBJ", c0, i) 
        save("CBh", c1, i) 
        save("CBt", c2, i) 
        
    # else: 
    #     V1_LIST.append(0)
    #     V2_LIST.append(0)
    #     V3_LIST.append(0)
    
draw.curve("CBh", "#7500ffff")
draw.curve("CBJ", "#95ffff14")
draw.curve("CBt", "#75ff81c0")

`

// scriptCostSpread renders the cost-basis spread sticks.
const scriptCostSpread = `

#=====================
# OO_LIST   = []
# CC_LIST   = []
# VV_LIST   = []

V1_LIST   = []
V2_LIST   = []
V3_LIST   = []


#=====================
for i in range(0,total):
    # oo = get("OPEN", i)
    # cc = get("CLOSE", i)
    # vv = get("VOLUME",i)/100
    
    ndate=int(get("TIME", i))  # eg. 20240412
    tkey = str(ndate)
    # OO_LIST.append(oo)
    # CC_LIST.append(cc)
    # VV_LIST.append(vv)
    
    if tkey in barsdata:
        data  = barsdata[tkey]
        c0 = data[0]
        c1 = data[1]
        c2 = data[2]
        # pet  = data[4]
        
        # V1_LIST.append(c0)
        # V2_LIST.append(c1)
        # V3_LIST.append(c2)
        
        save("c-t", c0-c2, i) 
        save("c-h", c0-c1, i) 
        
        ff = abs(c2-c1)
        if ff>0:
            save("hrr(%)", 100.0*abs(c0-c1)/ff, i) 
        else:
            save("hrr(%)", 0, i) 
        
    # else: 
    #     V1_LIST.append(0)
    #     V2_LIST.append(0)
    #     V3_LIST.append(0)
    
# draw.curve("CBh", "#7500ffff")
# draw.curve("CBJ", "#95ffff14")
draw.curve_right("hrr(%)", "#75ff81c0",0)

draw.stick("c-t", 8,2) 
draw.stick("c-h", 0,2) 

# draw.color_stick("h-c") 
# draw.color_stick("t-c") 
`
